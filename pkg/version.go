package pkg

import "fmt"

var (
	// Set by the linker at build time.
	FedrouterVersion         = "devel"
	GitRevision              = "devel"
	FedrouterVersionRevision = fmt.Sprintf("%s-%s", FedrouterVersion, GitRevision)
)
