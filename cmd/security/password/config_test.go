package password

import (
	"os"
	"testing"
)

func TestFromEnv_Defaults(t *testing.T) {
	for _, k := range []string{"BCRYPT_COST", "PASSWORD_MIN_LEN", "PASSWORD_REJECT_VERY_WEAK"} {
		_ = os.Unsetenv(k)
	}

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}

	def := DefaultConfig()
	if cfg.Cost != def.Cost || cfg.Cost != MinCost {
		t.Fatalf("cost mismatch: %d", cfg.Cost)
	}
	if cfg.Policy.MinLength != 6 {
		t.Fatalf("min length mismatch: %d", cfg.Policy.MinLength)
	}
}

func TestFromEnv_Override(t *testing.T) {
	t.Setenv("BCRYPT_COST", "13")
	t.Setenv("PASSWORD_MIN_LEN", "10")
	t.Setenv("PASSWORD_REJECT_VERY_WEAK", "true")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv error: %v", err)
	}
	if cfg.Cost != 13 || cfg.Policy.MinLength != 10 || !cfg.Policy.RejectVeryWeak {
		t.Fatalf("override failed: %+v", cfg)
	}
}

func TestFromEnv_RejectsLowCost(t *testing.T) {
	t.Setenv("BCRYPT_COST", "4")

	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error for cost below %d", MinCost)
	}
}

func TestFromEnv_InvalidBool(t *testing.T) {
	t.Setenv("PASSWORD_REJECT_VERY_WEAK", "maybe")

	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error for invalid boolean")
	}
}

func TestFromEnv_MinLenRange(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{in: "1", wantErr: true},
		{in: "5", wantErr: true},
		{in: "6", want: 6},
		{in: "40", want: 40},
		{in: "72", want: 72},
		{in: "73", wantErr: true},
	}

	for _, tc := range cases {
		t.Setenv("PASSWORD_MIN_LEN", tc.in)

		cfg, err := FromEnv()
		if tc.wantErr {
			if err == nil {
				t.Fatalf("PASSWORD_MIN_LEN=%s: expected error, got minlen=%d", tc.in, cfg.Policy.MinLength)
			}
			continue
		}
		if err != nil || cfg.Policy.MinLength != tc.want {
			t.Fatalf("PASSWORD_MIN_LEN=%s: minlen=%d err=%v", tc.in, cfg.Policy.MinLength, err)
		}
	}
}
