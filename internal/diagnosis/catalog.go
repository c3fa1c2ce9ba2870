package diagnosis

type catalogEntry struct {
	name           Text
	description    Text
	recommendation Text
}

// Display texts of every diagnosis type
var catalog = map[Type]catalogEntry{
	AirLeak: {
		Text{"Air leak", "Luftleck"},
		Text{"N2, O2 and Ar appear in atmospheric proportions.", "N2, O2 und Ar treten im atmosphärischen Verhältnis auf."},
		Text{"Locate the leak with a helium leak detector, check recently opened flanges and feedthroughs first.",
			"Leck mit Helium-Lecksucher lokalisieren, zuerst kürzlich geöffnete Flansche und Durchführungen prüfen."},
	},
	WaterOutgassing: {
		Text{"Water outgassing", "Wasser-Ausgasung"},
		Text{"Water dominates the residual gas, typical for an unbaked or recently vented system.",
			"Wasser dominiert das Restgas, typisch für ein nicht ausgeheiztes oder kürzlich belüftetes System."},
		Text{"Pump longer or bake out the system; vent with dry nitrogen in the future.",
			"Länger pumpen oder das System ausheizen; künftig mit trockenem Stickstoff belüften."},
	},
	InsufficientBakeout: {
		Text{"Insufficient bakeout", "Unzureichendes Ausheizen"},
		Text{"The system is reported as baked, but water still exceeds hydrogen.",
			"Das System ist als ausgeheizt gekennzeichnet, aber Wasser übersteigt noch Wasserstoff."},
		Text{"Extend the bakeout time or raise the bakeout temperature; check for cold spots.",
			"Ausheizdauer verlängern oder Ausheiztemperatur erhöhen; auf kalte Stellen prüfen."},
	},
	HydrogenDominant: {
		Text{"Clean UHV (hydrogen dominant)", "Sauberes UHV (Wasserstoff dominiert)"},
		Text{"Hydrogen from the chamber walls is the main residual gas, as expected for a clean baked system.",
			"Wasserstoff aus den Kammerwänden ist das Hauptrestgas, wie für ein sauberes ausgeheiztes System erwartet."},
		Text{"No action required.", "Keine Maßnahme erforderlich."},
	},
	HydrocarbonContamination: {
		Text{"Hydrocarbon contamination", "Kohlenwasserstoff-Kontamination"},
		Text{"Alkyl fragment series (m/z 41, 43, 55, 57) indicate oil or grease in the vacuum.",
			"Alkyl-Fragmentserien (m/z 41, 43, 55, 57) weisen auf Öl oder Fett im Vakuum hin."},
		Text{"Check for pump oil backstreaming and contaminated parts; clean or bake the affected components.",
			"Auf Pumpenöl-Rückströmung und verschmutzte Teile prüfen; betroffene Komponenten reinigen oder ausheizen."},
	},
	HeavyHydrocarbons: {
		Text{"Heavy hydrocarbons", "Schwere Kohlenwasserstoffe"},
		Text{"Fragments above m/z 70 indicate long-chain hydrocarbons such as pump oil.",
			"Fragmente oberhalb m/z 70 weisen auf langkettige Kohlenwasserstoffe wie Pumpenöl hin."},
		Text{"Inspect the forepump trap and turbo pump; consider an oil-free backing pump.",
			"Vorpumpenfalle und Turbopumpe prüfen; eine ölfreie Vorpumpe in Betracht ziehen."},
	},
	PFPEContamination: {
		Text{"PFPE (Fomblin) contamination", "PFPE (Fomblin) Kontamination"},
		Text{"CF3+ at m/z 69 with C2F5+ and CFO+ fragments indicates perfluoropolyether oil.",
			"CF3+ bei m/z 69 mit C2F5+- und CFO+-Fragmenten weist auf Perfluorpolyether-Öl hin."},
		Text{"Find the PFPE source (pump fluid, lubricated parts); PFPE is hard to remove and needs solvent cleaning.",
			"PFPE-Quelle finden (Pumpenfluid, geschmierte Teile); PFPE ist schwer zu entfernen und erfordert Lösemittelreinigung."},
	},
	SiliconeContamination: {
		Text{"Silicone contamination", "Silikon-Kontamination"},
		Text{"Siloxane fragments (m/z 73, 147, 207, 281) indicate silicone grease or oil.",
			"Siloxan-Fragmente (m/z 73, 147, 207, 281) weisen auf Silikonfett oder -öl hin."},
		Text{"Remove silicone-containing parts and greases; clean with suitable solvents.",
			"Silikonhaltige Teile und Fette entfernen; mit geeigneten Lösemitteln reinigen."},
	},
	SolventResidue: {
		Text{"Solvent residue", "Lösemittelrückstände"},
		Text{"Fragments of alcohols or acetone indicate residues from cleaning.",
			"Fragmente von Alkoholen oder Aceton weisen auf Rückstände der Reinigung hin."},
		Text{"Pump longer or bake out; dry parts thoroughly after solvent cleaning.",
			"Länger pumpen oder ausheizen; Teile nach der Lösemittelreinigung gründlich trocknen."},
	},
	HeliumLeak: {
		Text{"Helium leak / tracer gas", "Heliumleck / Prüfgas"},
		Text{"Helium is present above the natural background.", "Helium ist oberhalb des natürlichen Untergrunds vorhanden."},
		Text{"If no helium leak test is running, check for helium permeation or a leak to a helium supply.",
			"Falls kein Helium-Lecktest läuft, auf Heliumpermeation oder ein Leck zu einer Heliumversorgung prüfen."},
	},
	CO2Elevated: {
		Text{"Elevated CO2", "Erhöhtes CO2"},
		Text{"CO2 is a significant part of the residual gas.", "CO2 ist ein wesentlicher Teil des Restgases."},
		Text{"Check for organic contamination and hot filaments reacting with carbon deposits.",
			"Auf organische Kontamination und heiße Filamente prüfen, die mit Kohlenstoffablagerungen reagieren."},
	},
	CODominant: {
		Text{"CO dominant at m/z 28", "CO dominiert bei m/z 28"},
		Text{"The m/z 28 peak is mainly CO, not N2: the N2 fragment at m/z 14 is missing.",
			"Der Peak bei m/z 28 ist überwiegend CO, nicht N2: das N2-Fragment bei m/z 14 fehlt."},
		Text{"CO is typical for baked stainless steel and hot filaments; degas the filament if CO is too high.",
			"CO ist typisch für ausgeheizten Edelstahl und heiße Filamente; Filament entgasen, falls CO zu hoch ist."},
	},
	ArgonPresent: {
		Text{"Argon present", "Argon vorhanden"},
		Text{"Argon is confirmed by its doubly charged ion and isotope pattern.",
			"Argon ist durch sein doppelt geladenes Ion und Isotopenmuster bestätigt."},
		Text{"Argon without oxygen points to process gas or a sputter source rather than an air leak.",
			"Argon ohne Sauerstoff weist eher auf Prozessgas oder eine Sputterquelle als auf ein Luftleck hin."},
	},
	Ammonia: {
		Text{"Ammonia", "Ammoniak"},
		Text{"m/z 17 is too strong relative to water to be explained by OH+ alone.",
			"m/z 17 ist relativ zu Wasser zu stark, um allein durch OH+ erklärt zu werden."},
		Text{"Check for ammonia process gas or nitriding residues.", "Auf Ammoniak-Prozessgas oder Nitrierrückstände prüfen."},
	},
	Methane: {
		Text{"Methane", "Methan"},
		Text{"CH3+ at m/z 15 with the methane cracking pattern.", "CH3+ bei m/z 15 mit dem Methan-Fragmentmuster."},
		Text{"Methane is often produced by ion pumps and hot filaments; usually harmless.",
			"Methan entsteht oft in Ionengetterpumpen und an heißen Filamenten; meist unbedenklich."},
	},
	ChlorineContamination: {
		Text{"Chlorine contamination", "Chlor-Kontamination"},
		Text{"Cl and HCl are confirmed by the 3:1 isotope ratio of 35Cl and 37Cl.",
			"Cl und HCl sind durch das 3:1-Isotopenverhältnis von 35Cl und 37Cl bestätigt."},
		Text{"Find the chlorine source (cleaning agents, PVC, process gas); chlorine is corrosive.",
			"Chlorquelle finden (Reinigungsmittel, PVC, Prozessgas); Chlor ist korrosiv."},
	},
	H2SPresent: {
		Text{"Hydrogen sulfide", "Schwefelwasserstoff"},
		Text{"m/z 34 is far above the oxygen isotope contribution, with HS+ at m/z 33.",
			"m/z 34 liegt weit über dem Sauerstoff-Isotopenbeitrag, mit HS+ bei m/z 33."},
		Text{"Check for sulfur-containing materials or process gases.", "Auf schwefelhaltige Materialien oder Prozessgase prüfen."},
	},
	ESDArtifact: {
		Text{"Electron stimulated desorption", "Elektronenstimulierte Desorption"},
		Text{"Ions such as O+, F+ and H+ are desorbed from the ion source surfaces and do not represent gas phase species.",
			"Ionen wie O+, F+ und H+ werden von den Oberflächen der Ionenquelle desorbiert und stellen keine Gasphasen-Spezies dar."},
		Text{"Degas the ion source; do not use the affected masses for quantification.",
			"Ionenquelle entgasen; betroffene Massen nicht zur Quantifizierung verwenden."},
	},
	HighNoiseFloor: {
		Text{"High noise floor", "Hoher Rauschpegel"},
		Text{"The detection limit is high relative to the largest peak.", "Die Nachweisgrenze ist relativ zum größten Peak hoch."},
		Text{"Increase the dwell time or SEM gain, check the detector and electronics.",
			"Messzeit oder SEM-Verstärkung erhöhen, Detektor und Elektronik prüfen."},
	},
	LowSignal: {
		Text{"Low signal", "Schwaches Signal"},
		Text{"Only a few peaks are above the detection limit.", "Nur wenige Peaks liegen oberhalb der Nachweisgrenze."},
		Text{"Use the SEM detector or increase its gain; verify the filament emission.",
			"SEM-Detektor verwenden oder die Verstärkung erhöhen; Filament-Emission prüfen."},
	},
}
