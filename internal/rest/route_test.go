package rest

import "testing"

func TestCompileURL(t *testing.T) {
	cases := []struct {
		base, path, want string
	}{
		{"/example/api", "customers", "/example/api/customers"},
		{"/example/api/", "customers/", "/example/api/customers"},
		{"/example/api/customers", "../orders", "/example/api/orders"},
		{"/example/api/customers", "../../v2/orders", "/example/v2/orders"},
		{"/example/api", "./portal", "/example/api/portal"},
		{"/example/api", "/health", "/health"},
		{"/example/api", "", "/example/api"},
		{"/", "..", "/"},
		{"/", "", "/"},
		{`\example\api`, `users\1`, "/example/api/users/1"},
	}
	for _, tc := range cases {
		if got := CompileURL(tc.base, tc.path); got != tc.want {
			t.Errorf("CompileURL(%q, %q) = %q, want %q", tc.base, tc.path, got, tc.want)
		}
	}
}
