package main

import "testing"

func TestBaseURLFromBind(t *testing.T) {
	cases := map[string]string{
		"127.0.0.1:8460": "http://127.0.0.1:8460",
		"0.0.0.0:8460":   "http://127.0.0.1:8460",
		":8460":          "http://127.0.0.1:8460",
		"[::]:8460":      "http://127.0.0.1:8460",
		"10.2.0.4:9000":  "http://10.2.0.4:9000",
	}
	for bind, want := range cases {
		if got := baseURLFromBind(bind); got != want {
			t.Errorf("baseURLFromBind(%q): expected %q, got %q", bind, want, got)
		}
	}
}

func TestClientPrefersAPIFlag(t *testing.T) {
	api := "example.internal:8460"
	ctx := newCommandContext(&api, nil)

	client, err := ctx.client()
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	if client.baseURL != "http://example.internal:8460" {
		t.Fatalf("expected scheme prepended, got %q", client.baseURL)
	}
}

func TestYesNo(t *testing.T) {
	if yesNo(true) != "yes" || yesNo(false) != "no" {
		t.Fatal("yesNo mapping broken")
	}
}
