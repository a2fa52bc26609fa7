package engine

import "go.elara.ws/pcre"

// pcreRunner executes patterns on the pure Go PCRE2 port. Used for
// backreferences, lookaround and possessive quantifiers, which RE2
// rejects by design.
type pcreRunner struct {
	re *pcre.Regexp
}

func compilePCRE(src string) (runner, error) {
	re, err := pcre.Compile(src)
	if err != nil {
		return nil, err
	}
	return &pcreRunner{re: re}, nil
}

func (r *pcreRunner) findAll(data []byte, limit int) [][]int {
	return r.re.FindAllSubmatchIndex(data, limit)
}

func (r *pcreRunner) close() {
	r.re.Close()
}
