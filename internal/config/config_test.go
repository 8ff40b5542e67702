package config

import "testing"

func validConfig() *Config {
	return &Config{
		Port:                8080,
		MaxPaymentsPerBatch: 100,
		MaxRetries:          5,
		MaxCycles:           2,
		ConfirmationDepth:   10,
		SignerConcurrency:   2,
	}
}

func TestValidate_Valid(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	tests := []struct {
		name string
		port int
	}{
		{"zero", 0},
		{"negative", -1},
		{"too high", 65536},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Port = tt.port
			if err := cfg.Validate(); err == nil {
				t.Fatalf("Validate() expected error for port=%d, got nil", tt.port)
			}
		})
	}
}

func TestValidate_InvalidMaxPaymentsPerBatch(t *testing.T) {
	cfg := validConfig()
	cfg.MaxPaymentsPerBatch = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for max_payments_per_batch=0, got nil")
	}
}

func TestValidate_InvalidMaxRetries(t *testing.T) {
	cfg := validConfig()
	cfg.MaxRetries = -1
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for max_retries=-1, got nil")
	}
}

func TestValidate_ZeroMaxRetriesAllowed(t *testing.T) {
	cfg := validConfig()
	cfg.MaxRetries = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("max_retries=0 should be valid, got %v", err)
	}
}

func TestValidate_InvalidMaxCycles(t *testing.T) {
	cfg := validConfig()
	cfg.MaxCycles = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for max_cycles=0, got nil")
	}
}

func TestValidate_InvalidConfirmationDepth(t *testing.T) {
	cfg := validConfig()
	cfg.ConfirmationDepth = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for confirmation_depth=0, got nil")
	}
}

func TestValidate_InvalidSignerConcurrency(t *testing.T) {
	cfg := validConfig()
	cfg.SignerConcurrency = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for signer_concurrency=0, got nil")
	}
}
