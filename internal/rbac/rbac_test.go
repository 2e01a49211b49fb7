package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		scopes string
		action Action
		allow  bool
	}{
		{name: "no recorded scopes", scopes: "", action: ActionPublish, allow: true},
		{name: "analyze needs nothing", scopes: "read_themes", action: ActionAnalyze, allow: true},
		{name: "read store granted", scopes: "read_products", action: ActionReadStore, allow: true},
		{name: "read store missing", scopes: "read_themes", action: ActionReadStore, allow: false},
		{name: "publish granted", scopes: "read_products,write_marketing_events", action: ActionPublish, allow: true},
		{name: "publish missing", scopes: "read_products", action: ActionPublish, allow: false},
		{name: "write implies read", scopes: "write_products", action: ActionReadStore, allow: true},
		{name: "space separated", scopes: "read_products write_marketing_events", action: ActionPublish, allow: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(ParseGrants(tc.scopes), tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.scopes, tc.action, got, tc.allow)
			}
		})
	}
}

func TestGrantsString(t *testing.T) {
	got := ParseGrants(" WRITE_marketing_events ,read_products").String()
	want := "read_marketing_events,read_products,write_marketing_events"
	if got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}
