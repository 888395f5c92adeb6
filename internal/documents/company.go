package documents

import (
	"path/filepath"
	"regexp"
	"strings"
)

var companyNoise = []*regexp.Regexp{
	regexp.MustCompile(`\d{4}年.*`),
	regexp.MustCompile(`年度报告`),
	regexp.MustCompile(`财报`),
	regexp.MustCompile(`【.*?】`),
	regexp.MustCompile(`(?i)[\s_-]*(annual[\s_-]*)?report.*$`),
	regexp.MustCompile(`[\s_-]+(19|20)\d{2}$`),
}

// CompanyFromFileName derives a company name from a report file name by
// dropping the extension, years and report boilerplate.
func CompanyFromFileName(fileName string) string {
	name := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	for _, re := range companyNoise {
		name = re.ReplaceAllString(name, "")
	}
	return strings.TrimSpace(name)
}
