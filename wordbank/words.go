package wordbank

// Built-in word lists. Czech is the original deck; English was added for
// mixed lobbies. Multi-word entries are allowed, spaces are preserved by the
// hint mask.

var czechEasy = []string{
	"DŮM", "RYBA", "AUTO", "KOČKA", "PES", "SLUNCE", "MĚSÍC", "STROM",
	"KVĚTINA", "PTÁK", "LAMPA", "MRAK", "HORY", "KNIHA", "MOBIL", "TUŽKA",
	"STŮL", "ŽIDLE", "BALÓN", "OKNO", "MÍČEK", "KOLO", "JABLKO", "KLOBOUK",
}

var czechHard = []string{
	"MOBILNÍ APLIKACE", "INTERNET", "NÁKUP", "NEMOCNICE", "DOKTOR",
	"LETIŠTĚ", "PILOT", "PROGRAMÁTOR", "SKLADATEL", "ZPĚVÁK", "KUCHAŘ",
	"ARCHITEKT", "SOCHAŘ", "MALÍŘ", "ČOKOLÁDA", "KLAVÍR", "MOTÝL", "ZÁMEK",
}

var englishEasy = []string{
	"HOUSE", "FISH", "CAR", "CAT", "DOG", "SUN", "MOON", "TREE",
	"FLOWER", "BIRD", "LAMP", "CLOUD", "BOOK", "PHONE", "PENCIL", "TABLE",
	"CHAIR", "BALLOON", "WINDOW", "APPLE", "BIKE", "HAT", "BALL", "SHIRT",
}

var englishHard = []string{
	"MOBILE APP", "INTERNET", "HOSPITAL", "DOCTOR", "AIRPORT", "PILOT",
	"PROGRAMMER", "COMPOSER", "SINGER", "CHEF", "ARCHITECT", "SCULPTOR",
	"PAINTER", "CHOCOLATE", "PIANO", "BUTTERFLY", "CASTLE", "LIGHTHOUSE",
}
