package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// FilterConfig holds the news relevance tables. Every field has a built-in
// default; a YAML file only needs the keys it changes.
type FilterConfig struct {
	SourceWeights map[string]float64 `yaml:"source_weights"`
	Boost         []string           `yaml:"boost"`
	Allow         []string           `yaml:"allow"`
	Block         []string           `yaml:"block"`

	BoostWeight  float64 `yaml:"boost_weight"`
	AllowWeight  float64 `yaml:"allow_weight"`
	SourceBonus  float64 `yaml:"source_bonus"` // added when a source weight is above 1.0
	MinScore     float64 `yaml:"min_score"`
	DupWindowMin int     `yaml:"dup_window_min"`
	MaxListItems int     `yaml:"max_list_items"`

	// StyleHint guides AI rewrites.
	StyleHint string `yaml:"style_hint"`
}

func DefaultFilters() FilterConfig {
	return FilterConfig{
		SourceWeights: map[string]float64{
			"haber7.com":      1.0,
			"cnnturk.com":     1.0,
			"ntv.com.tr":      1.0,
			"hurriyet.com.tr": 0.9,
			"bbcturkce.com":   1.0,
			"sabah.com.tr":    0.9,
			"sozcu.com.tr":    0.9,
		},
		Boost: []string{
			"son dakika", "deprem", "afet", "saldırı", "patlama", "ateşkes", "OHAL", "yargı", "mahkeme",
			"faiz", "enflasyon", "asgari ücret", "vergi", "bütçe", "MB", "Merkez Bankası", "BDDK",
			"dolar", "euro", "altın", "kur", "zam", "ÖTV", "KDV",
			"cumhurbaşkanı", "bakan", "kabine", "tbmm", "seçim", "diplomasi", "nato", "ab", "abd",
			"apple", "iphone", "ios", "macbook", "samsung", "galaxy", "google", "meta", "openai", "yapay zeka", "ai",
			"pfdk", "tff", "derbi", "transfer", "milli takım", "Şampiyonlar Ligi", "UEFA",
			"beşiktaş", "fenerbahçe", "galatasaray", "Arda Güler",
		},
		Allow: []string{
			"deprem", "yangın", "sel", "fırtına", "tahliye", "kaza", "soruşturma", "tutuklandı", "serbest bırakıldı",
			"faiz", "enflasyon", "asgari ücret", "vergi", "dolar", "euro", "altın", "bütçe", "tasarı", "meclis",
			"cumhurbaşkanı", "bakan", "kabine", "kararname", "yasa", "tbmm", "seçim", "diplomasi", "anlaşma",
			"yapay zeka", "ai", "uygulama", "güncelleme", "özellik", "gizlilik", "veri ihlali",
			"pfdk", "tff", "transfer", "milli takım", "sakatlık", "ceza", "hakem", "idman yasağı",
		},
		Block: []string{
			"indirim", "kampanya", "çekiliş", "kupon", "bedava", "fırsat", "şoke eden", "şok", "tıklayın",
			"video için", "galeri için", "izleyin", "fotoğraflar", "bakın",
			"magazin", "ünlü", "sevgilisi", "evlendi", "boşandı", "düğün",
			"sokak kavgası", "kıskançlık", "komşu tartışması",
			"mahalle", "sokak röportajı", "ilginç anlar",
			"iddia edildi", "görüntülendi", "sosyal medyada gündem",
		},
		BoostWeight:  1.0,
		AllowWeight:  0.6,
		SourceBonus:  0.2,
		MinScore:     1.2,
		DupWindowMin: 30,
		MaxListItems: 6,
		StyleHint: "Resmi-sade, kısa, bilgi odaklı yaz. Gereksiz bağlaç yok. " +
			"Varsa alıntıyı tırnak içine al. Özel isimleri doğru yaz. " +
			"Aynı konuda peş peşe post üretme.",
	}
}

// LoadFilters overlays the YAML file at path on the defaults. A missing file
// yields the defaults.
func LoadFilters(path string) (FilterConfig, error) {
	cfg := DefaultFilters()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("failed to read filter config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse filter config %s: %w", path, err)
	}
	return cfg, nil
}
