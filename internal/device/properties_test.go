package device

import "testing"

func TestPing360Config_FullCircle(t *testing.T) {
	cases := []struct {
		name string
		cfg  Ping360Config
		want bool
	}{
		{"full circle", Ping360Config{StartAngle: 0, StopAngle: 399}, true},
		{"partial sweep", Ping360Config{StartAngle: 100, StopAngle: 200}, false},
		{"start nonzero", Ping360Config{StartAngle: 1, StopAngle: 399}, false},
		{"stop short", Ping360Config{StartAngle: 0, StopAngle: 398}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.cfg.FullCircle(); got != tc.want {
				t.Errorf("FullCircle() = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestPing360Config_Equal(t *testing.T) {
	a := DefaultPing360Config()
	b := DefaultPing360Config()
	if !a.Equal(b) {
		t.Error("identical configs should be equal")
	}
	b.NumSteps = 2
	if a.Equal(b) {
		t.Error("configs differing in num_steps should not be equal")
	}
}

func TestPing360Settings_GetSetVisibility(t *testing.T) {
	s := NewPing360Settings(DefaultPing360Config())
	updated := DefaultPing360Config()
	updated.StartAngle = 50
	updated.StopAngle = 150

	s.Set(updated)
	if got := s.Get(); !got.Equal(updated) {
		t.Errorf("Get() = %+v, want %+v", got, updated)
	}
}

func TestNewPing360Properties_SettingsShared(t *testing.T) {
	props := NewPing360Properties(Common{}, DefaultPing360Config())
	if props.Kind != KindPing360 {
		t.Fatalf("Kind = %v, want KindPing360", props.Kind)
	}
	if props.Settings == nil {
		t.Fatal("Ping360 properties must carry non-nil Settings")
	}

	clone := props
	clone.Settings.Set(Ping360Config{StartAngle: 10, StopAngle: 20})
	if props.Settings.Get().StartAngle != 10 {
		t.Error("Settings pointer must be shared across clones (I5)")
	}
}

func TestNewCommonProperties_NoSettings(t *testing.T) {
	props := NewCommonProperties(Common{})
	if props.Settings != nil {
		t.Error("non-Ping360 properties must not carry Settings")
	}
}
