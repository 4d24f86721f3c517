package protocol

// builtinDefinitions is the compiled-in protocol table. Timings are in
// clock multiples; negative values are low pulses.
var builtinDefinitions = []Definition{
	// Synced (MS) protocols
	{
		ID: "0", Name: "weather1", Comment: "Logilink, NC, WS, TCM97001 etc.",
		ClientModule: "CUL_TCM97001", Format: FormatSynced,
		ClockAbs: -1, Sync: []float64{1, -8}, One: []float64{1, -4}, Zero: []float64{1, -2},
		Preamble: "s", Postamble: "00", LengthMin: 24, LengthMax: 46, PaddingBits: 8,
	},
	{
		ID: "1", Name: "Conrad RSL v1", Comment: "remotes and switches",
		ClientModule: "SD_RSL", Format: FormatSynced,
		ClockAbs: 560, Sync: []float64{1, -12}, One: []float64{2, -1}, Zero: []float64{1, -2},
		Preamble: "P1#", LengthMin: 20, LengthMax: 40,
	},
	{
		ID: "3", Name: "chip xx2262", Comment: "remote for ELRO, Intertek, etc.",
		ClientModule: "IT", Format: FormatSynced,
		ClockAbs: -1, Sync: []float64{1, -31}, One: []float64{3, -1}, Zero: []float64{1, -3}, Float: []float64{1, -1},
		Preamble: "i", LengthMin: 24, LengthMax: 24,
	},
	{
		ID: "3.1", Name: "chip xx2262", Comment: "remote for ELRO, Intertek, etc. with a long sync",
		ClientModule: "IT", Format: FormatSynced,
		ClockAbs: -1, Sync: []float64{1, -44}, One: []float64{3.5, -1}, Zero: []float64{1, -3.8}, Float: []float64{1, -1},
		Preamble: "i", LengthMin: 24, LengthMax: 24,
	},
	{
		ID: "4", Name: "arctech2", Comment: "Intertechno self-learning, 4 pulses per bit",
		ClientModule: "IT", Format: FormatSynced,
		ClockAbs: 300, Sync: []float64{1, -10}, One: []float64{1, -5, 1, -1}, Zero: []float64{1, -1, 1, -5},
		Preamble: "u4#", LengthMin: 44, LengthMax: 57,
	},
	{
		ID: "7", Name: "weatherID7", Comment: "EAS800z, FreeTec NC-7344",
		ClientModule: "SD_WS07", Format: FormatSynced,
		ClockAbs: 450, Sync: []float64{1, -19}, One: []float64{1, -7}, Zero: []float64{1, -3},
		Preamble: "P7#", LengthMin: 35, LengthMax: 40,
	},
	{
		ID: "33", Name: "weather33", Comment: "S014, TFA 30.3200, TCM, Conrad",
		ClientModule: "SD_WS", Format: FormatSynced,
		ClockAbs: 500, Sync: []float64{1, -16}, One: []float64{1, -8}, Zero: []float64{1, -4},
		Preamble: "W33#", PostDemodulation: "LengthPrefix", LengthMin: 42, LengthMax: 44,
		ModuleMatch: "^W33#[A-F0-9]+",
	},

	// Unsynced (MU) protocols
	{
		ID: "44", Name: "BresserTemeo", Comment: "temperature / humidity sensor",
		ClientModule: "SD_WS", Format: FormatUnsynced,
		ClockAbs: 500, Zero: []float64{4, -4}, One: []float64{4, -8}, Start: []float64{8, -8},
		Preamble: "W44#", ModuleMatch: "^W44#[A-F0-9]{18}", LengthMin: 64, LengthMax: 72,
	},
	{
		ID: "46", Name: "SKX", Comment: "Berner, Kangtai, EASY UP garage door remotes",
		ClientModule: "SD_UT", Format: FormatUnsynced,
		ClockAbs: 290, One: []float64{7, -1}, Zero: []float64{1, -7}, Start: []float64{-55},
		Preamble: "P46#", LengthMin: 14, LengthMax: 18,
	},
	{
		ID: "60", Name: "WS2000", Comment: "ELV WS2000 series sensors",
		ClientModule: "CUL_WS", Format: FormatUnsynced,
		ClockAbs: 366, One: []float64{3, -7}, Zero: []float64{7, -3},
		Preamble: "K", PostDemodulation: "WS2000", LengthMin: 38, LengthMax: 82,
		ReconstructBit: true,
	},
	{
		ID: "63", Name: "Revolt", Comment: "Revolt energy meter",
		ClientModule: "Revolt", Format: FormatUnsynced,
		ClockAbs: 200, One: []float64{2, -2}, Zero: []float64{1, -2}, Start: []float64{11, -1},
		Preamble: "r", PostDemodulation: "Revolt", LengthMin: 96, LengthMax: 120,
		ModuleMatch: "^r[A-Fa-f0-9]{22}",
	},
	{
		ID: "70", Name: "FHT80TF", Comment: "door/window contact",
		ClientModule: "CUL_FHTTK", Format: FormatUnsynced,
		ClockAbs: 400, One: []float64{1.5, -1.5}, Zero: []float64{1, -1},
		Preamble: "TK", PostDemodulation: "FHT80TF", LengthMin: 52, LengthMax: 52,
		ModuleMatch: "^TK[A-F0-9]{8}",
	},
	{
		ID: "73", Name: "FHT80", Comment: "room thermostat",
		ClientModule: "FHT", Format: FormatUnsynced,
		ClockAbs: 400, One: []float64{1.5, -1.5}, Zero: []float64{1, -1},
		Preamble: "810c04xx0909a001", PostDemodulation: "FHT80", LengthMin: 59, LengthMax: 67,
		ModuleMatch: "^81..(04|0c)..0909a001",
	},
	{
		ID: "74", Name: "FS20", Comment: "remote control",
		ClientModule: "FS20", Format: FormatUnsynced,
		ClockAbs: 400, One: []float64{1.5, -1.5}, Zero: []float64{1, -1},
		Preamble: "810b04f70101a001", PostDemodulation: "FS20", LengthMin: 50, LengthMax: 67,
		ModuleMatch: "^81..(04|0c)..0101a001",
	},
	{
		ID: "80", Name: "EM1000WZ", Comment: "energy meter",
		ClientModule: "CUL_EM", Format: FormatUnsynced,
		ClockAbs: 800, One: []float64{1, -2}, Zero: []float64{1, -1},
		Preamble: "E", PostDemodulation: "EM", LengthMin: 104, LengthMax: 114,
		ModuleMatch: "^E0.................",
	},
	{
		ID: "90", Name: "WS7035", Comment: "ELV TX-Sensor WS7035",
		ClientModule: "CUL_TX", Format: FormatUnsynced,
		ClockAbs: 400, One: []float64{1, -2}, Zero: []float64{4, -2},
		Preamble: "TX", PostDemodulation: "WS7035", LengthMin: 44, LengthMax: 45,
		ModuleMatch: "^TX......",
	},
	{
		ID: "91", Name: "WS7053", Comment: "ELV TX-Sensor WS7053",
		ClientModule: "CUL_TX", Format: FormatUnsynced,
		ClockAbs: 500, One: []float64{1, -1.5}, Zero: []float64{2, -1.5},
		Preamble: "TX", PostDemodulation: "WS7053", LengthMin: 32, LengthMax: 34,
		ModuleMatch: "^TX......",
	},

	// Manchester (MC) protocols
	{
		ID: "2", Name: "AS, Atlas", Comment: "self build arduino sensor",
		ClientModule: "SD_AS", Format: FormatManchester,
		ClockMin: 400, ClockMax: 700, Method: "AS",
		Preamble: "P2#", LengthMin: 32, LengthMax: 34,
	},
	{
		ID: "10", Name: "OSV2o3", Comment: "Oregon Scientific v2 and v3 sensors",
		ClientModule: "OREGON", Format: FormatManchester,
		ClockMin: 300, ClockMax: 600, Method: "OSV2o3",
		Preamble: "50", LengthMin: 64, LengthMax: 220,
	},
	{
		ID: "12", Name: "Hideki", Comment: "Hideki, TFA 30.3150, Cresta",
		ClientModule: "Hideki", Format: FormatManchester,
		ClockMin: 420, ClockMax: 510, Method: "Hideki", PolarityInvert: true,
		Preamble: "P12#", LengthMin: 71, LengthMax: 128,
	},
	{
		ID: "43", Name: "Somfy RTS", Comment: "Somfy RTS roller shutters",
		ClientModule: "SOMFY", Format: FormatManchester,
		ClockMin: 610, ClockMax: 680, Method: "SomfyRTS",
		Preamble: "Ys", LengthMin: 56, LengthMax: 57,
	},
	{
		ID: "47", Name: "Maverick", Comment: "BBQ temperature sensor",
		ClientModule: "SD_WS_Maverick", Format: FormatManchester,
		ClockMin: 180, ClockMax: 260, Method: "Maverick",
		Preamble: "P47#", LengthMin: 100, LengthMax: 108,
	},
	{
		ID: "52", Name: "Oregon Scientific PIR", Comment: "Oregon Scientific PIR motion detector",
		ClientModule: "OREGON", Format: FormatManchester,
		ClockMin: 400, ClockMax: 600, Method: "OSPIR", PolarityInvert: true,
		Preamble: "u52#", LengthMin: 30, LengthMax: 30,
	},
	{
		ID: "57", Name: "m-e", Comment: "radio gong transmitter",
		ClientModule: "SD_UT", Format: FormatManchester,
		ClockMin: 300, ClockMax: 360, Method: "MCRaw",
		Preamble: "u57#", LengthMin: 21, LengthMax: 24,
	},
	{
		ID: "58", Name: "TFA 30.3208.0", Comment: "weather sensor",
		ClientModule: "SD_WS", Format: FormatManchester,
		ClockMin: 460, ClockMax: 520, Method: "TFA",
		Preamble: "W58#", LengthMin: 52, LengthMax: 52,
	},
	{
		ID: "96", Name: "Grothe Mistral SE", Comment: "radio gong",
		ClientModule: "SD_GT", Format: FormatManchester,
		ClockMin: 450, ClockMax: 550, Method: "Grothe", ExactLength: 32,
		Preamble: "u96#", LengthMin: 32, LengthMax: 32,
	},
	{
		ID: "119", Name: "Funkbus", Comment: "Insta, Berker, Gira, Jung",
		ClientModule: "IFB", Format: FormatManchester,
		ClockMin: 460, ClockMax: 560, Method: "Funkbus",
		Preamble: "J", LengthMin: 47, LengthMax: 52,
	},
	{
		ID: "125", Name: "Sainlogic", Comment: "Sainlogic weather station, Ventus W835",
		ClientModule: "SD_WS", Format: FormatManchester,
		ClockMin: 950, ClockMax: 1050, Method: "Sainlogic",
		Preamble: "W125#", LengthMin: 128, LengthMax: 128,
	},
	{
		ID: "126", Name: "OSV1", Comment: "Oregon Scientific v1",
		ClientModule: "OREGON", Format: FormatManchester,
		ClockMin: 1400, ClockMax: 1600, Method: "OSV1",
		Preamble: "", LengthMin: 32, LengthMax: 32,
	},

	// Noise (MN) protocols received with the CC1101 packet engine
	{
		ID: "100", Name: "LaCrosse TX29/TX35", Comment: "temperature / humidity sensor",
		ClientModule: "LaCrosse", Format: FormatNoise, Method: "LaCrosse",
		RFMode: "Lacrosse_mode1", RegexMatch: "^9", LengthMin: 10, LengthMax: 10,
	},
	{
		ID: "101", Name: "PCA301", Comment: "energy socket",
		ClientModule: "PCA301", Format: FormatNoise, Method: "PCA301",
		RFMode: "PCA301", LengthMin: 24, LengthMax: 24,
	},
	{
		ID: "108", Name: "Bresser 5in1", Comment: "weather station",
		ClientModule: "SD_WS", Format: FormatNoise, Method: "Bresser5in1",
		RFMode: "Bresser_5in1", Preamble: "W108#", LengthMin: 52, LengthMax: 52,
	},
	{
		ID: "115", Name: "Bresser 6in1", Comment: "weather station",
		ClientModule: "SD_WS", Format: FormatNoise, Method: "Bresser6in1",
		RFMode: "Bresser_6in1", Preamble: "W115#", LengthMin: 36, LengthMax: 36,
	},
	{
		ID: "117", Name: "Bresser 7in1", Comment: "weather station",
		ClientModule: "SD_WS", Format: FormatNoise, Method: "Bresser7in1",
		RFMode: "Bresser_7in1", Preamble: "W117#", LengthMin: 50, LengthMax: 50,
	},
	{
		ID: "131", Name: "Bresser lightning", Comment: "lightning detector",
		ClientModule: "SD_WS", Format: FormatNoise, Method: "BresserLightning",
		RFMode: "Bresser_lightning", Preamble: "W131#", LengthMin: 20, LengthMax: 20,
	},
}

// Builtin returns a catalog of the compiled-in protocols
func Builtin() *Catalog {
	return MustCatalog(builtinDefinitions)
}
