package github

import "testing"

func TestParseRepoURL(t *testing.T) {
	cases := []struct {
		name      string
		input     string
		wantOwner string
		wantRepo  string
		wantErr   bool
	}{
		{name: "https", input: "https://github.com/octo/app", wantOwner: "octo", wantRepo: "app"},
		{name: "https with .git", input: "https://github.com/octo/app.git", wantOwner: "octo", wantRepo: "app"},
		{name: "ssh remote", input: "git@github.com:octo/app", wantOwner: "octo", wantRepo: "app"},
		{name: "ssh remote with .git", input: "git@github.com:octo/app.git", wantOwner: "octo", wantRepo: "app"},
		{name: "trailing path", input: "https://github.com/octo/app/releases", wantOwner: "octo", wantRepo: "app"},
		{name: "other host", input: "https://gitlab.com/octo/app", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "not a url", input: "octo/app", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			owner, repo, err := ParseRepoURL(tc.input)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("parse %q: %v", tc.input, err)
			}
			if owner != tc.wantOwner || repo != tc.wantRepo {
				t.Fatalf("parse %q = (%s, %s), want (%s, %s)", tc.input, owner, repo, tc.wantOwner, tc.wantRepo)
			}
		})
	}
}
