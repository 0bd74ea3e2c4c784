package models

import "testing"

func TestParseDistribution(t *testing.T) {
	cases := []struct {
		raw     string
		want    Distribution
		wantErr bool
	}{
		{"us", DistributionUS, false},
		{" DE ", DistributionDE, false},
		{"Pt", DistributionPT, false},
		{"", "", true},
		{"uk", "", true},
	}
	for _, tc := range cases {
		got, err := ParseDistribution(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseDistribution(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseDistribution(%q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ParseDistribution(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestNormalizeClientPath(t *testing.T) {
	cases := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"data/Item/Item.sdata", "data/item/item.sdata", false},
		{`data\Interface\icon.dds`, "data/interface/icon.dds", false},
		{"/version.ini", "version.ini", false},
		{"data//npc/./quest.sdata", "data/npc/quest.sdata", false},
		{"", "", true},
		{"../escape.dll", "", true},
	}
	for _, tc := range cases {
		got, err := NormalizeClientPath(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("NormalizeClientPath(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("NormalizeClientPath(%q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("NormalizeClientPath(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}
