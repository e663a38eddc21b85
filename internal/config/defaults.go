package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/caseflow/data/db/caseflow.db"
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "/usr/local/var/caseflow/data/cases"
	}
	if cfg.Storage.SearchIndexPath == "" {
		cfg.Storage.SearchIndexPath = "/usr/local/var/caseflow/data/indices/artifacts"
	}
	if cfg.OCR.Endpoint == "" {
		cfg.OCR.Endpoint = "https://api.ocr.space/parse/image"
	}
	if cfg.OCR.TimeoutSeconds == 0 {
		cfg.OCR.TimeoutSeconds = 60
	}
	if cfg.Pipeline.PageCharLimit == 0 {
		cfg.Pipeline.PageCharLimit = 2000
	}
	if cfg.Pipeline.MaxUploadMB == 0 {
		cfg.Pipeline.MaxUploadMB = 20
	}
	if cfg.Download.LinkTTLSeconds == 0 {
		cfg.Download.LinkTTLSeconds = 600
	}
}
