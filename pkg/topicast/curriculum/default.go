package curriculum

// Default returns the built-in curriculum. Chapter order within each
// subject matches the declared order here.
func Default() *Curriculum {
	return &Curriculum{
		version: 1,
		entries: []Entry{
			{
				Exam:    "JEE_MAIN",
				Subject: "Physics",
				Chapter: "Thermodynamics",
				Keywords: []string{
					"heat", "temperature", "entropy", "enthalpy",
					"first law", "second law", "carnot", "efficiency",
					"isothermal", "adiabatic", "isobaric", "isochoric",
				},
				Topics: []string{
					"First Law of Thermodynamics",
					"Second Law of Thermodynamics",
					"Heat Engines",
					"Carnot Cycle",
					"Entropy",
				},
			},
			{
				Exam:    "JEE_MAIN",
				Subject: "Physics",
				Chapter: "Mechanics",
				Keywords: []string{
					"force", "motion", "velocity", "acceleration",
					"newton", "momentum", "energy", "work", "power",
					"friction", "kinematics", "dynamics",
				},
				Topics: []string{
					"Laws of Motion",
					"Work, Energy, and Power",
					"Rotational Motion",
					"Gravitation",
				},
			},
			{
				Exam:    "JEE_MAIN",
				Subject: "Physics",
				Chapter: "Electromagnetism",
				Keywords: []string{
					"electric", "magnetic", "field", "charge", "current",
					"resistance", "capacitor", "inductor", "voltage",
					"coulomb", "faraday", "ampere", "gauss",
				},
				Topics: []string{
					"Electrostatics",
					"Current Electricity",
					"Magnetic Effects",
					"Electromagnetic Induction",
				},
			},
			{
				Exam:    "CBSE",
				Subject: "Physics",
				Chapter: "Optics",
				Keywords: []string{
					"light", "reflection", "refraction", "lens", "mirror",
					"prism", "spectrum", "diffraction", "interference",
					"polarization",
				},
				Topics: []string{
					"Ray Optics",
					"Wave Optics",
					"Optical Instruments",
				},
			},
		},
	}
}
