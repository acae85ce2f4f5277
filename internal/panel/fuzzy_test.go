package panel

import "testing"

func TestFuzzyEqual(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"签到", "🎯 签到", true},
		{"签到", "每日签到", true},
		{"签到", "签 到", true},
		{"签到", "签.到", true},
		{"签到", "点击签到", true},
		{"签到", "登录", false},
		{"check in", "Check-In", true},
		{"check in", "Daily Check In", true},
		{"check in", "登录", false},
		{"签  到", "🎯 签到", true},
		{"每日签到", "🎯 签到", true},
		{"打卡", "签到打卡", true},
		{"打卡", "打卡签到", true},
		{"打卡", "每日打卡", true},
		{"", "签到", false},
		{"签到", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		if got := FuzzyEqual(tc.a, tc.b); got != tc.want {
			t.Errorf("FuzzyEqual(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestFuzzyEqualSymmetry(t *testing.T) {
	pairs := [][2]string{
		{"签到", "🎯 签到"},
		{"每日签到", "打卡"},
		{"check in", "Check-In"},
		{"签到", "登录"},
	}
	for _, p := range pairs {
		if FuzzyEqual(p[0], p[1]) != FuzzyEqual(p[1], p[0]) {
			t.Errorf("FuzzyEqual not symmetric for %q / %q", p[0], p[1])
		}
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Check-In", "checkin"},
		{"签 到", "签到"},
		{"🎯 签到", "签到"},
		{"（每日）签到！", "每日签到"},
		{"~ Daily.Check:In ~", "dailycheckin"},
	}
	for _, tc := range cases {
		if got := normalize(tc.in); got != tc.want {
			t.Errorf("normalize(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
