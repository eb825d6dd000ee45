package config

func Defaults() *Config {
	return &Config{
		General: GeneralConfig{
			LogLevel: "info",
		},
		Database: DatabaseConfig{
			Path:                "~/.cashops/cash_logistics.db",
			QueryTimeoutSeconds: 30,
			MaxResultRows:       10000,
			BusyTimeoutMs:       5000,
		},
		Rules: RulesConfig{
			HighVolumeThreshold:   5000,
			CashSittingHours:      48,
			TrailingWindowDays:    28,
			MismatchToleranceDays: 1,
			SLACreditPerMiss:      150,
			OverService: ServiceBandConfig{
				DailyVolume:   2500,
				WeeklyPickups: 4,
			},
			UnderService: ServiceBandConfig{
				DailyVolume:   6000,
				WeeklyPickups: 2,
			},
			Consolidation: ConsolidationConfig{
				MaxDistanceKm: 25,
			},
		},
	}
}
