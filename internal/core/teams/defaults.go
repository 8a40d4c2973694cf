package teams

import "github.com/charleschow/market-matcher/internal/config"

// DefaultAliasFile is the built-in table used when ALIAS_TABLE_PATH is unset.
// New York and Los Angeles football teams carry no city alias: the city
// alone would collide between the two franchises.
var DefaultAliasFile = config.AliasFile{
	Version: "builtin-2025.11",
	Sports: map[string][]config.TeamEntry{
		"nfl": {
			{ID: "ARI", Name: "Arizona Cardinals", City: "Arizona", Mascot: "Cardinals", Abbreviations: []string{"ARI", "ARZ"}},
			{ID: "ATL", Name: "Atlanta Falcons", City: "Atlanta", Mascot: "Falcons", Abbreviations: []string{"ATL"}},
			{ID: "BAL", Name: "Baltimore Ravens", City: "Baltimore", Mascot: "Ravens", Abbreviations: []string{"BAL"}},
			{ID: "BUF", Name: "Buffalo Bills", City: "Buffalo", Mascot: "Bills", Abbreviations: []string{"BUF"}},
			{ID: "CAR", Name: "Carolina Panthers", City: "Carolina", Mascot: "Panthers", Abbreviations: []string{"CAR"}},
			{ID: "CHI", Name: "Chicago Bears", City: "Chicago", Mascot: "Bears", Abbreviations: []string{"CHI"}},
			{ID: "CIN", Name: "Cincinnati Bengals", City: "Cincinnati", Mascot: "Bengals", Abbreviations: []string{"CIN"}},
			{ID: "CLE", Name: "Cleveland Browns", City: "Cleveland", Mascot: "Browns", Abbreviations: []string{"CLE"}},
			{ID: "DAL", Name: "Dallas Cowboys", City: "Dallas", Mascot: "Cowboys", Abbreviations: []string{"DAL"}},
			{ID: "DEN", Name: "Denver Broncos", City: "Denver", Mascot: "Broncos", Abbreviations: []string{"DEN"}},
			{ID: "DET", Name: "Detroit Lions", City: "Detroit", Mascot: "Lions", Abbreviations: []string{"DET"}},
			{ID: "GB", Name: "Green Bay Packers", City: "Green Bay", Mascot: "Packers", Abbreviations: []string{"GB", "GNB"}},
			{ID: "HOU", Name: "Houston Texans", City: "Houston", Mascot: "Texans", Abbreviations: []string{"HOU"}},
			{ID: "IND", Name: "Indianapolis Colts", City: "Indianapolis", Mascot: "Colts", Abbreviations: []string{"IND"}},
			{ID: "JAX", Name: "Jacksonville Jaguars", City: "Jacksonville", Mascot: "Jaguars", Abbreviations: []string{"JAX", "JAC"}, Aliases: []string{"Jags"}},
			{ID: "KC", Name: "Kansas City Chiefs", City: "Kansas City", Mascot: "Chiefs", Abbreviations: []string{"KC", "KAN"}},
			{ID: "LV", Name: "Las Vegas Raiders", City: "Las Vegas", Mascot: "Raiders", Abbreviations: []string{"LV", "LVR"}, Aliases: []string{"Oakland Raiders"}},
			{ID: "LAC", Name: "Los Angeles Chargers", Mascot: "Chargers", Abbreviations: []string{"LAC"}, Aliases: []string{"LA Chargers"}},
			{ID: "LAR", Name: "Los Angeles Rams", Mascot: "Rams", Abbreviations: []string{"LAR", "LA"}, Aliases: []string{"LA Rams"}},
			{ID: "MIA", Name: "Miami Dolphins", City: "Miami", Mascot: "Dolphins", Abbreviations: []string{"MIA"}},
			{ID: "MIN", Name: "Minnesota Vikings", City: "Minnesota", Mascot: "Vikings", Abbreviations: []string{"MIN"}},
			{ID: "NE", Name: "New England Patriots", City: "New England", Mascot: "Patriots", Abbreviations: []string{"NE", "NWE"}, Aliases: []string{"Pats"}},
			{ID: "NO", Name: "New Orleans Saints", City: "New Orleans", Mascot: "Saints", Abbreviations: []string{"NO", "NOR"}},
			{ID: "NYG", Name: "New York Giants", Mascot: "Giants", Abbreviations: []string{"NYG"}, Aliases: []string{"NY Giants"}},
			{ID: "NYJ", Name: "New York Jets", Mascot: "Jets", Abbreviations: []string{"NYJ"}, Aliases: []string{"NY Jets"}},
			{ID: "PHI", Name: "Philadelphia Eagles", City: "Philadelphia", Mascot: "Eagles", Abbreviations: []string{"PHI"}},
			{ID: "PIT", Name: "Pittsburgh Steelers", City: "Pittsburgh", Mascot: "Steelers", Abbreviations: []string{"PIT"}},
			{ID: "SF", Name: "San Francisco 49ers", City: "San Francisco", Mascot: "49ers", Abbreviations: []string{"SF", "SFO"}, Aliases: []string{"Niners"}},
			{ID: "SEA", Name: "Seattle Seahawks", City: "Seattle", Mascot: "Seahawks", Abbreviations: []string{"SEA"}},
			{ID: "TB", Name: "Tampa Bay Buccaneers", City: "Tampa Bay", Mascot: "Buccaneers", Abbreviations: []string{"TB", "TAM"}, Aliases: []string{"Bucs"}},
			{ID: "TEN", Name: "Tennessee Titans", City: "Tennessee", Mascot: "Titans", Abbreviations: []string{"TEN"}},
			{ID: "WAS", Name: "Washington Commanders", City: "Washington", Mascot: "Commanders", Abbreviations: []string{"WAS", "WSH"}},
		},
		"nba": {
			{ID: "ATL", Name: "Atlanta Hawks", City: "Atlanta", Mascot: "Hawks", Abbreviations: []string{"ATL"}},
			{ID: "BOS", Name: "Boston Celtics", City: "Boston", Mascot: "Celtics", Abbreviations: []string{"BOS"}},
			{ID: "BKN", Name: "Brooklyn Nets", City: "Brooklyn", Mascot: "Nets", Abbreviations: []string{"BKN", "BRK"}},
			{ID: "CHA", Name: "Charlotte Hornets", City: "Charlotte", Mascot: "Hornets", Abbreviations: []string{"CHA", "CHO"}},
			{ID: "CHI", Name: "Chicago Bulls", City: "Chicago", Mascot: "Bulls", Abbreviations: []string{"CHI"}},
			{ID: "CLE", Name: "Cleveland Cavaliers", City: "Cleveland", Mascot: "Cavaliers", Abbreviations: []string{"CLE"}, Aliases: []string{"Cavs"}},
			{ID: "DAL", Name: "Dallas Mavericks", City: "Dallas", Mascot: "Mavericks", Abbreviations: []string{"DAL"}, Aliases: []string{"Mavs"}},
			{ID: "DEN", Name: "Denver Nuggets", City: "Denver", Mascot: "Nuggets", Abbreviations: []string{"DEN"}},
			{ID: "DET", Name: "Detroit Pistons", City: "Detroit", Mascot: "Pistons", Abbreviations: []string{"DET"}},
			{ID: "GSW", Name: "Golden State Warriors", City: "Golden State", Mascot: "Warriors", Abbreviations: []string{"GSW", "GS"}},
			{ID: "HOU", Name: "Houston Rockets", City: "Houston", Mascot: "Rockets", Abbreviations: []string{"HOU"}},
			{ID: "IND", Name: "Indiana Pacers", City: "Indiana", Mascot: "Pacers", Abbreviations: []string{"IND"}},
			{ID: "LAC", Name: "Los Angeles Clippers", Mascot: "Clippers", Abbreviations: []string{"LAC"}, Aliases: []string{"LA Clippers"}},
			{ID: "LAL", Name: "Los Angeles Lakers", Mascot: "Lakers", Abbreviations: []string{"LAL"}, Aliases: []string{"LA Lakers"}},
			{ID: "MEM", Name: "Memphis Grizzlies", City: "Memphis", Mascot: "Grizzlies", Abbreviations: []string{"MEM"}},
			{ID: "MIA", Name: "Miami Heat", City: "Miami", Mascot: "Heat", Abbreviations: []string{"MIA"}},
			{ID: "MIL", Name: "Milwaukee Bucks", City: "Milwaukee", Mascot: "Bucks", Abbreviations: []string{"MIL"}},
			{ID: "MIN", Name: "Minnesota Timberwolves", City: "Minnesota", Mascot: "Timberwolves", Abbreviations: []string{"MIN"}, Aliases: []string{"Wolves"}},
			{ID: "NOP", Name: "New Orleans Pelicans", City: "New Orleans", Mascot: "Pelicans", Abbreviations: []string{"NOP", "NO"}},
			{ID: "NYK", Name: "New York Knicks", City: "New York", Mascot: "Knicks", Abbreviations: []string{"NYK", "NY"}},
			{ID: "OKC", Name: "Oklahoma City Thunder", City: "Oklahoma City", Mascot: "Thunder", Abbreviations: []string{"OKC"}},
			{ID: "ORL", Name: "Orlando Magic", City: "Orlando", Mascot: "Magic", Abbreviations: []string{"ORL"}},
			{ID: "PHI", Name: "Philadelphia 76ers", City: "Philadelphia", Mascot: "76ers", Abbreviations: []string{"PHI"}, Aliases: []string{"Sixers"}},
			{ID: "PHX", Name: "Phoenix Suns", City: "Phoenix", Mascot: "Suns", Abbreviations: []string{"PHX", "PHO"}},
			{ID: "POR", Name: "Portland Trail Blazers", City: "Portland", Mascot: "Trail Blazers", Abbreviations: []string{"POR"}, Aliases: []string{"Blazers"}},
			{ID: "SAC", Name: "Sacramento Kings", City: "Sacramento", Mascot: "Kings", Abbreviations: []string{"SAC"}},
			{ID: "SAS", Name: "San Antonio Spurs", City: "San Antonio", Mascot: "Spurs", Abbreviations: []string{"SAS", "SA"}},
			{ID: "TOR", Name: "Toronto Raptors", City: "Toronto", Mascot: "Raptors", Abbreviations: []string{"TOR"}},
			{ID: "UTA", Name: "Utah Jazz", City: "Utah", Mascot: "Jazz", Abbreviations: []string{"UTA", "UTAH"}},
			{ID: "WAS", Name: "Washington Wizards", City: "Washington", Mascot: "Wizards", Abbreviations: []string{"WAS", "WSH"}},
		},
	},
}

// DefaultTable builds the built-in table. It panics only if the literal
// above is structurally broken.
func DefaultTable() *Table {
	t, err := NewTable(DefaultAliasFile)
	if err != nil {
		panic(err)
	}
	return t
}
