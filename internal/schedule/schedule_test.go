package schedule

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func divisors(n int) []interface{} {
	var out []interface{}
	for d := 1; d <= n; d++ {
		if n%d == 0 {
			out = append(out, d)
		}
	}
	return out
}

// Для любого n | 60 набор EveryNMinutes(n) = {0, n, ..., 60-n} и строго возрастает.
func TestBuild_MinutesTriggerSet_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("trigger set is {0, n, ..., 60-n}", prop.ForAll(
		func(n int) bool {
			s, err := Build(EveryNMinutes(n))
			if err != nil {
				return false
			}
			tr := s.Triggers()
			if len(tr) != 60/n || tr[0] != 0 || tr[len(tr)-1] != 60-n {
				return false
			}
			for i := 1; i < len(tr); i++ {
				if tr[i] <= tr[i-1] || tr[i]-tr[i-1] != n {
					return false
				}
			}
			return true
		},
		gen.OneConstOf(divisors(60)...),
	))

	properties.Property("non-divisors are rejected", prop.ForAll(
		func(n int) bool {
			_, err := Build(EveryNMinutes(n))
			var ce *ConfigError
			return errors.As(err, &ce)
		},
		gen.IntRange(-100, 200).SuchThat(func(n int) bool { return n <= 0 || n > 60 || 60%n != 0 }),
	))

	properties.TestingRun(t)
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name    string
		in      IntervalSpec
		want    []int
		wantErr bool
	}{
		{"15 minutes", EveryNMinutes(15), []int{0, 15, 30, 45}, false},
		{"6 hours", EveryNHours(6), []int{0, 6, 12, 18}, false},
		{"20 seconds", EveryNSeconds(20), []int{0, 20, 40}, false},
		{"daily", Daily(), []int{0}, false},
		{"7 minutes", EveryNMinutes(7), nil, true},
		{"5 hours", EveryNHours(5), nil, true},
		{"zero", EveryNSeconds(0), nil, true},
		{"negative", EveryNHours(-2), nil, true},
		{"none", IntervalSpec{}, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Build(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Build(%v) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if tt.wantErr {
				var ce *ConfigError
				if !errors.As(err, &ce) {
					t.Errorf("ожидали *ConfigError, получили %T", err)
				}
				return
			}
			if got := s.Triggers(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Triggers() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSpec_Matches(t *testing.T) {
	at := func(h, m, s int) time.Time { return time.Date(2025, 6, 1, h, m, s, 0, time.UTC) }
	minutes, _ := Build(EveryNMinutes(30))
	hours, _ := Build(EveryNHours(6))
	daily, _ := Build(Daily())
	seconds, _ := Build(EveryNSeconds(10))

	tests := []struct {
		name string
		spec Spec
		now  time.Time
		want bool
	}{
		{"minutes boundary", minutes, at(10, 30, 0), true},
		{"minutes in grace", minutes, at(10, 0, 4), true},
		{"minutes grace over", minutes, at(10, 0, 5), false},
		{"minutes not member", minutes, at(10, 15, 0), false},
		{"hours boundary", hours, at(12, 0, 2), true},
		{"hours wrong minute", hours, at(12, 1, 2), false},
		{"hours not member", hours, at(13, 0, 0), false},
		{"daily midnight", daily, at(0, 0, 1), true},
		{"daily late", daily, at(0, 0, 6), false},
		{"daily noon", daily, at(12, 0, 0), false},
		{"seconds member", seconds, at(3, 4, 50), true},
		{"seconds not member", seconds, at(3, 4, 51), false},
		{"zero spec", Spec{}, at(0, 0, 0), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.spec.Matches(tt.now); got != tt.want {
				t.Errorf("%v.Matches(%v) = %v, want %v", tt.spec, tt.now, got, tt.want)
			}
		})
	}
}

func TestSpec_Bucket(t *testing.T) {
	now := time.Date(2025, 6, 1, 23, 47, 38, 500, time.UTC)
	tests := []struct {
		in   IntervalSpec
		want time.Time
	}{
		{EveryNSeconds(15), time.Date(2025, 6, 1, 23, 47, 30, 0, time.UTC)},
		{EveryNMinutes(15), time.Date(2025, 6, 1, 23, 45, 0, 0, time.UTC)},
		{EveryNHours(6), time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)},
		{Daily(), time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		s, err := Build(tt.in)
		if err != nil {
			t.Fatal(err)
		}
		if got := s.Bucket(now); !got.Equal(tt.want) {
			t.Errorf("%v.Bucket(%v) = %v, want %v", tt.in, now, got, tt.want)
		}
	}

	daily, _ := Build(Daily())
	before := time.Date(2025, 6, 1, 23, 59, 58, 0, time.UTC)
	after := time.Date(2025, 6, 2, 0, 0, 1, 0, time.UTC)
	if daily.Bucket(before).Equal(daily.Bucket(after)) {
		t.Error("23:59:58 и 00:00:01 должны быть в разных суточных периодах")
	}
}

func TestParseInterval(t *testing.T) {
	tests := []struct {
		in      string
		want    IntervalSpec
		wantErr bool
	}{
		{"", IntervalSpec{}, false},
		{"daily", Daily(), false},
		{"DAILY", Daily(), false},
		{"24h", Daily(), false},
		{"2h", EveryNHours(2), false},
		{"1h", EveryNHours(1), false},
		{"15m", EveryNMinutes(15), false},
		{"90m", EveryNMinutes(90), false},
		{"10s", EveryNSeconds(10), false},
		{"1m30s", EveryNSeconds(90), false},
		{"500ms", IntervalSpec{}, true},
		{"-5m", IntervalSpec{}, true},
		{"soon", IntervalSpec{}, true},
	}
	for _, tt := range tests {
		got, err := ParseInterval(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseInterval(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseInterval(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestParse(t *testing.T) {
	s, err := Parse("")
	if err != nil || !s.IsZero() {
		t.Errorf("Parse(\"\") = %v, %v; ожидали нулевое расписание", s, err)
	}
	if _, err := Parse("90m"); err == nil {
		t.Error("90m не делит час: ожидали ошибку")
	}
	if _, err := Parse("7s"); err == nil {
		t.Error("7s не делит минуту: ожидали ошибку")
	}
	s, err = Parse("30m")
	if err != nil {
		t.Fatal(err)
	}
	if s.Kind() != KindEveryNMinutes || s.String() != "30m" {
		t.Errorf("Parse(30m) = %v (%v)", s, s.Kind())
	}
}
