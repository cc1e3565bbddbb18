package config

// DefaultOutputFile is the reflection file written when output.file is not set.
const DefaultOutputFile = "reflection.xml"

// applyDefaults fills unset fields and canonicalizes enumerations. Unknown
// enumeration values are kept so Validate can report them.
func applyDefaults(cfg *Config) {
	if cfg.Output.File == "" {
		cfg.Output.File = DefaultOutputFile
	}

	if cfg.MemberOrder == "" {
		cfg.MemberOrder = MemberOrderDeclaration
	} else if v, err := memberOrderNormalizer.NormalizeWithValidation(string(cfg.MemberOrder)); err == nil {
		cfg.MemberOrder = v
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = LogLevelInfo
	} else if v, err := logLevelNormalizer.NormalizeWithValidation(string(cfg.Logging.Level)); err == nil {
		cfg.Logging.Level = v
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = LogFormatText
	} else if v, err := logFormatNormalizer.NormalizeWithValidation(string(cfg.Logging.Format)); err == nil {
		cfg.Logging.Format = v
	}

	if cfg.History.Keep < 0 {
		cfg.History.Keep = 0
	}
}
