package engine

import "regexp"

// re2Runner executes patterns on Go's RE2 regexp engine. Linear time,
// no backtracking features.
type re2Runner struct {
	re *regexp.Regexp
}

func compileRE2(src string) (runner, error) {
	re, err := regexp.Compile(src)
	if err != nil {
		return nil, err
	}
	return &re2Runner{re: re}, nil
}

func (r *re2Runner) findAll(data []byte, limit int) [][]int {
	return r.re.FindAllSubmatchIndex(data, limit)
}

func (r *re2Runner) close() {}
