package snapshot

// Approximate centroids per Dutch two-digit postcode region. Used when a
// partner has no geolocation of its own; precise enough for a country-level
// customer map.
var postcodeRegions = map[string][2]float64{
	"10": {52.3676, 4.9041},  // Amsterdam
	"11": {52.3508, 5.2647},  // Almere
	"12": {52.0907, 5.1214},  // Utrecht
	"13": {52.1561, 5.3878},  // Amersfoort
	"14": {52.5200, 4.9500},  // Purmerend
	"15": {52.4580, 4.8150},  // Zaandam
	"16": {52.6324, 4.7534},  // Alkmaar
	"17": {52.7792, 4.8000},  // Schagen
	"18": {52.6425, 5.0597},  // Hoorn
	"19": {52.4420, 4.8260},  // Velsen
	"20": {52.3874, 4.6462},  // Haarlem
	"21": {52.3500, 4.6600},  // Heemstede
	"22": {52.1700, 4.4900},  // Katwijk
	"23": {52.1601, 4.4970},  // Leiden
	"24": {52.1930, 4.6600},  // Alphen aan den Rijn
	"25": {52.0705, 4.3007},  // Den Haag
	"26": {52.0116, 4.3571},  // Delft
	"27": {52.0575, 4.4931},  // Zoetermeer
	"28": {52.0184, 4.7104},  // Gouda
	"29": {51.8600, 4.6100},  // Oud-Beijerland
	"30": {51.9244, 4.4777},  // Rotterdam
	"31": {51.9200, 4.3400},  // Vlaardingen
	"32": {51.8400, 4.3300},  // Spijkenisse
	"33": {51.8133, 4.6901},  // Dordrecht
	"34": {52.0200, 5.0900},  // Nieuwegein
	"35": {52.0907, 5.1214},  // Utrecht
	"36": {52.3508, 5.2647},  // Almere
	"37": {52.1200, 5.2900},  // Zeist
	"38": {52.2600, 5.6200},  // Nijkerk
	"39": {52.0400, 5.3400},  // Veenendaal
	"40": {51.8900, 5.4300},  // Tiel
	"41": {51.8100, 5.0900},  // Gorinchem
	"42": {51.8300, 4.8600},  // Sliedrecht
	"43": {51.5000, 3.8500},  // Goes
	"44": {51.4536, 3.5709},  // Vlissingen
	"45": {51.3300, 3.8700},  // Terneuzen
	"46": {51.5000, 4.2900},  // Bergen op Zoom
	"47": {51.5900, 4.7800},  // Breda
	"48": {51.5900, 4.7800},  // Breda
	"49": {51.6400, 4.8600},  // Oosterhout
	"50": {51.6900, 5.3000},  // Den Bosch
	"51": {51.6300, 5.0400},  // Waalwijk
	"52": {51.6900, 5.3000},  // Den Bosch
	"53": {51.6500, 5.5400},  // Veghel
	"54": {51.6558, 5.6910},  // Uden
	"55": {51.4416, 5.4697},  // Eindhoven
	"56": {51.4416, 5.4697},  // Eindhoven
	"57": {51.4800, 5.6600},  // Helmond
	"58": {51.5300, 6.0000},  // Venray
	"59": {51.3704, 6.1724},  // Venlo
	"60": {51.2500, 5.7100},  // Weert
	"61": {51.2200, 5.9900},  // Roermond
	"62": {50.8514, 5.6910},  // Maastricht
	"63": {50.8882, 5.9795},  // Heerlen
	"64": {50.8600, 6.0200},  // Kerkrade
	"65": {51.8126, 5.8372},  // Nijmegen
	"66": {51.8126, 5.8372},  // Nijmegen
	"67": {51.9851, 5.8987},  // Arnhem
	"68": {51.9851, 5.8987},  // Arnhem
	"69": {51.9600, 5.9100},  // Zevenaar
	"70": {52.0400, 6.5200},  // Doetinchem
	"71": {52.1400, 6.2000},  // Zutphen
	"72": {52.1400, 6.2000},  // Zutphen
	"73": {52.2553, 6.1639},  // Deventer
	"74": {52.2600, 6.7900},  // Almelo
	"75": {52.2215, 6.8937},  // Enschede
	"76": {52.2215, 6.8937},  // Enschede
	"77": {52.5200, 6.4200},  // Hardenberg
	"78": {52.5168, 6.0830},  // Zwolle
	"79": {52.7000, 6.1900},  // Meppel
	"80": {52.5168, 6.0830},  // Zwolle
	"81": {52.3800, 5.6300},  // Harderwijk
	"82": {52.5100, 5.4700},  // Lelystad
	"83": {52.7100, 5.7500},  // Emmeloord
	"84": {52.9600, 5.9200},  // Heerenveen
	"85": {53.0300, 5.6600},  // Sneek
	"86": {53.1000, 5.8000},  // Grou
	"87": {53.0300, 5.6600},  // Sneek
	"88": {53.2012, 5.7999},  // Leeuwarden
	"89": {53.2012, 5.7999},  // Leeuwarden
	"90": {53.2194, 6.5665},  // Groningen
	"91": {53.1100, 6.0900},  // Drachten
	"92": {53.1100, 6.0900},  // Drachten
	"93": {53.0000, 6.5600},  // Assen
	"94": {53.0000, 6.5600},  // Assen
	"95": {53.1600, 6.7600},  // Hoogezand
	"96": {53.3300, 6.9200},  // Delfzijl
	"97": {53.2194, 6.5665},  // Groningen
	"98": {53.2194, 6.5665},  // Groningen
	"99": {53.3200, 6.5200},  // Bedum
}

// postcodeCoords resolves a Dutch postcode to approximate coordinates.
// Returns zeros when the postcode is missing or foreign.
func postcodeCoords(postcode string) (lat, lon float64) {
	if len(postcode) < 2 {
		return 0, 0
	}
	if coords, ok := postcodeRegions[postcode[:2]]; ok {
		return coords[0], coords[1]
	}
	return 0, 0
}
