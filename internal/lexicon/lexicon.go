// Package lexicon holds the versioned keyword sets used by the intent classifier,
// the feedback categorizer and the evaluation stage. It carries data only.
package lexicon

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Entry is one labelled keyword set. Terms keep their order because several
// consumers probe them first-match-wins.
type Entry struct {
	Category string   `yaml:"category"`
	Terms    []string `yaml:"terms"`
}

type Lexicon struct {
	Version string `yaml:"version"`

	Legal    []string `yaml:"legal"`
	Contract []string `yaml:"contract"`
	Advice   []string `yaml:"advice"`
	Greeting []string `yaml:"greeting"`
	Help     []string `yaml:"help"`

	LegalSubcategories    []Entry `yaml:"legal_subcategories"`
	ContractSubcategories []Entry `yaml:"contract_subcategories"`

	// Categories drive the feedback categorizer (argmax of term hits).
	Categories []Entry `yaml:"categories"`

	StopWords      []string `yaml:"stop_words"`
	PositiveWords  []string `yaml:"positive_words"`
	NegativeWords  []string `yaml:"negative_words"`
	RelevanceTerms []string `yaml:"relevance_terms"`

	// CoverageTaxonomy is the fixed category list legal coverage is measured against.
	CoverageTaxonomy []string `yaml:"coverage_taxonomy"`
}

func Default() *Lexicon {
	return &Lexicon{
		Version: "2024.1",
		Legal: []string{
			"luật", "pháp luật", "quy định", "nghị định", "thông tư",
			"hiến pháp", "bộ luật", "nghị quyết", "chỉ thị",
			"quyền", "nghĩa vụ", "tội phạm", "hình phạt", "xử phạt",
			"tranh chấp", "kiện", "tòa án", "luật sư", "pháp lý",
		},
		Contract: []string{
			"hợp đồng", "thỏa thuận", "ký kết", "điều khoản",
			"nghĩa vụ", "quyền lợi", "vi phạm", "bồi thường",
			"chấm dứt", "gia hạn", "sửa đổi", "bổ sung",
		},
		Advice: []string{
			"tư vấn", "hướng dẫn", "giúp đỡ", "hỗ trợ",
			"cần làm gì", "phải làm sao", "cách thức",
			"thủ tục", "quy trình",
		},
		Greeting: []string{
			"xin chào", "chào", "hello", "hi", "chào bạn",
			"chào anh", "chào chị", "chào em", "chào cô",
			"chào thầy", "chào cô giáo",
		},
		Help: []string{
			"giúp", "hỗ trợ", "hướng dẫn", "cần giúp",
			"làm sao", "như thế nào", "cách nào",
		},
		LegalSubcategories: []Entry{
			{Category: "business", Terms: []string{"doanh nghiệp", "công ty"}},
			{Category: "labor", Terms: []string{"lao động", "lương"}},
			{Category: "civil", Terms: []string{"dân sự", "sở hữu"}},
			{Category: "criminal", Terms: []string{"hình sự", "tội phạm"}},
			{Category: "property", Terms: []string{"đất đai", "nhà ở"}},
			{Category: "family", Terms: []string{"hôn nhân", "gia đình"}},
			{Category: "tax", Terms: []string{"thuế", "khai thuế"}},
			{Category: "traffic", Terms: []string{"giao thông", "xử phạt"}},
			{Category: "cybersecurity", Terms: []string{"an ninh mạng", "dữ liệu"}},
		},
		ContractSubcategories: []Entry{
			{Category: "labor_contract", Terms: []string{"lao động", "việc làm"}},
			{Category: "commercial_contract", Terms: []string{"mua bán", "thương mại"}},
			{Category: "rental_contract", Terms: []string{"thuê", "cho thuê"}},
			{Category: "construction_contract", Terms: []string{"xây dựng", "thi công"}},
		},
		Categories: []Entry{
			{Category: "constitutional", Terms: []string{"hiến pháp", "cơ bản", "quyền", "nghĩa vụ"}},
			{Category: "civil", Terms: []string{"dân sự", "sở hữu", "hợp đồng", "thừa kế"}},
			{Category: "criminal", Terms: []string{"hình sự", "tội phạm", "hình phạt", "an ninh"}},
			{Category: "business", Terms: []string{"doanh nghiệp", "thành lập", "quản lý", "cổ đông"}},
			{Category: "labor", Terms: []string{"lao động", "lương", "bảo hiểm", "nghỉ phép"}},
			{Category: "property", Terms: []string{"đất đai", "nhà ở", "quyền sở hữu", "bất động sản"}},
			{Category: "family", Terms: []string{"hôn nhân", "gia đình", "ly hôn", "cấp dưỡng"}},
			{Category: "tax", Terms: []string{"thuế", "khai thuế", "nộp thuế", "hoàn thuế"}},
			{Category: "traffic", Terms: []string{"giao thông", "xử phạt", "vi phạm", "bằng lái"}},
			{Category: "cybersecurity", Terms: []string{"an ninh mạng", "dữ liệu", "thông tin", "bảo mật"}},
		},
		StopWords:      []string{"của", "và", "trong", "với", "cho", "từ", "đến", "về", "theo", "như", "này", "các", "những", "được", "một"},
		PositiveWords:  []string{"tốt", "tích cực", "hữu ích", "chính xác", "đúng"},
		NegativeWords:  []string{"sai", "không đúng", "tiêu cực", "xấu", "không hữu ích"},
		RelevanceTerms: []string{"luật", "pháp luật", "quy định", "nghị định", "thông tư", "hiến pháp"},
		CoverageTaxonomy: []string{
			"constitutional", "civil", "criminal", "business", "labor",
			"property", "family", "tax", "traffic", "cybersecurity",
		},
	}
}

// LoadFile overlays a YAML lexicon on top of the defaults. Sections absent from the
// file keep their default terms.
func LoadFile(path string) (*Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Lexicon, error) {
	lex := Default()
	if err := yaml.Unmarshal(data, lex); err != nil {
		return nil, fmt.Errorf("failed to parse lexicon: %w", err)
	}
	if err := lex.Validate(); err != nil {
		return nil, err
	}
	return lex, nil
}

func (l *Lexicon) Validate() error {
	var errs []error
	sets := map[string][]string{
		"legal":    l.Legal,
		"contract": l.Contract,
		"advice":   l.Advice,
		"greeting": l.Greeting,
		"help":     l.Help,
	}
	for name, terms := range sets {
		if len(terms) == 0 {
			errs = append(errs, fmt.Errorf("lexicon set %q is empty", name))
		}
	}
	if len(l.CoverageTaxonomy) == 0 {
		errs = append(errs, errors.New("lexicon coverage taxonomy is empty"))
	}
	seen := make(map[string]bool, len(l.Categories))
	for _, e := range l.Categories {
		if seen[e.Category] {
			errs = append(errs, fmt.Errorf("duplicate lexicon category %q", e.Category))
		}
		seen[e.Category] = true
	}
	return errors.Join(errs...)
}
