package builder

import (
	git "github.com/go-git/go-git/v6"
)

// revisionStamp returns the short hash of the project's HEAD commit, or
// the empty string when the directory is not inside a git work tree.
// HEAD only moves when the tree changes, so the stamp never breaks the
// byte-identical-output guarantee for an unchanged tree.
func revisionStamp(dir string) string {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return ""
	}

	head, err := repo.Head()
	if err != nil {
		return ""
	}

	return head.Hash().String()[:12]
}
