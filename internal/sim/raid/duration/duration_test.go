package duration

import "testing"

func TestConversions(t *testing.T) {
	if got := Minutes(2).Ticks(); got != 2400 {
		t.Fatalf("2min=%d ticks want 2400", got)
	}
	if got := Ticks(59).Seconds(); got != 2 {
		t.Fatalf("59 ticks=%d s want 2", got)
	}
	if got := Seconds(125).Minutes(); got != 2 {
		t.Fatalf("125s=%d min want 2", got)
	}
}

func TestDisplay(t *testing.T) {
	cases := []struct {
		d    Duration
		want string
	}{
		{Seconds(4800), "80min"},
		{Seconds(90), "1min30s"},
		{Seconds(5), "5s"},
		{Ticks(10), ""},
	}
	for _, c := range cases {
		if got := c.d.Display(); got != c.want {
			t.Fatalf("Display(%d)=%q want %q", c.d, got, c.want)
		}
	}
}

func TestUnitOf(t *testing.T) {
	d, ok := Unit("min").Of(3)
	if !ok || d.Ticks() != 3600 {
		t.Fatalf("min: %d %v", d, ok)
	}
	if _, ok := Unit("hours").Of(1); ok {
		t.Fatalf("expected unknown unit")
	}
}
