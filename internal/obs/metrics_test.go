package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                                    "/",
		"/metrics":                            "/metrics",
		"/auth/signup":                        "/auth/signup",
		"/organizations/org1/users":           "/organizations/:org/users",
		"/organizations/org1/users/u42":       "/organizations/:org/users/:id",
		"/organizations/org1/users?limit=10":  "/organizations/:org/users",
		"/organizations/org1/users/u42/extra": "/organizations/org1/users/u42/extra",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
