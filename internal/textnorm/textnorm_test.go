package textnorm

import (
	"reflect"
	"strings"
	"testing"
)

func TestCleanHTMLText(t *testing.T) {
	in := "<p>Merhaba &amp; hoş geldiniz</p><script>x()</script> “Dünya” ."
	want := `Merhaba & hoş geldiniz "Dünya".`
	if got := CleanHTMLText(in); got != want {
		t.Errorf("CleanHTMLText = %q, want %q", got, want)
	}
}

func TestTitleCleanup(t *testing.T) {
	if got := StripSiteTrailer("Faiz kararı açıklandı | Haber7"); got != "Faiz kararı açıklandı" {
		t.Errorf("StripSiteTrailer = %q", got)
	}
	for in, want := range map[string]string{
		"SON DAKİKA: Deprem oldu": "Deprem oldu",
		"Son dakika - Maç bitti":  "Maç bitti",
		"Sondaki gelişme":         "Sondaki gelişme",
	} {
		if got := StripBreakingPrefix(in); got != want {
			t.Errorf("StripBreakingPrefix(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitSentences(t *testing.T) {
	got := SplitSentences("Birinci cümle. İkinci cümle!  Üçüncü? son")
	want := []string{"Birinci cümle.", "İkinci cümle!", "Üçüncü?", "son"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitSentences = %q, want %q", got, want)
	}

	got = SplitSentences("Detaylar burada https://x.co/a. Devamı.")
	want = []string{"Detaylar burada", "Devamı."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitSentences with link = %q, want %q", got, want)
	}
}

func TestIsCompleteSentence(t *testing.T) {
	cases := map[string]bool{
		"Merkez Bankası faizi sabit tuttu.":    true,
		"2025 bütçesi Meclis'te kabul edildi.": true,
		"Merkez Bankası faizi sabit tuttu ve":  false,
		"Toplantı yarın yapılacak, ancak":      false,
		"Bakan açıkladı:":                      false,
		"merkez bankası faizi sabit tuttu.":    false,
		"Tamam.":                               false,
		"Seçim tarihi belli oldu ya da.":       false,
		"":                                     false,
		"Kurul kararı bekleniyor…":             false,
	}
	for in, want := range cases {
		if got := IsCompleteSentence(in); got != want {
			t.Errorf("IsCompleteSentence(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestTooSimilar(t *testing.T) {
	if !TooSimilar("Merkez Bankası faizi sabit tuttu", "merkez bankasi faizi sabit tuttu") {
		t.Error("accent and case variants should be similar")
	}
	if TooSimilar("Dolar yükseldi", "Altın düştü") {
		t.Error("unrelated sentences should not be similar")
	}
	if TooSimilar("", "x") {
		t.Error("empty input is never similar")
	}
}

func TestFold(t *testing.T) {
	if got := Fold("Başkanı İSTANBUL"); got != "baskani istanbul" {
		t.Errorf("Fold = %q", got)
	}
}

func TestPhraseMatching(t *testing.T) {
	if !ContainsPhrase("Faiz kararı açıklandı", "faiz") {
		t.Error("expected whole word match")
	}
	if ContainsPhrase("Faizler arttı", "faiz") {
		t.Error("prefix of a longer word must not match")
	}
	if got := ReplacePhrase("Son Dakika: gol", "son dakika", "gelişme"); got != "gelişme: gol" {
		t.Errorf("ReplacePhrase = %q", got)
	}
}

func TestPickTitleSpeaker(t *testing.T) {
	speaker, quote, ok := PickTitleSpeaker(`Bakan Şimşek: "Enflasyon düşecek"`)
	if !ok || speaker != "Bakan Şimşek" || quote != "Enflasyon düşecek" {
		t.Errorf("got %q %q %v", speaker, quote, ok)
	}
	if _, _, ok := PickTitleSpeaker("Dolar: 34 lira"); ok {
		t.Error("single word speaker should be rejected")
	}
	if _, _, ok := PickTitleSpeaker("bakan şimşek: enflasyon"); ok {
		t.Error("lowercase speaker should be rejected")
	}
}

func TestRemoveRepeatedName(t *testing.T) {
	got := RemoveRepeatedName("Cumhurbaşkanı Yardımcısı Cevdet Yılmaz yatırımları anlattı.", "Cumhurbaşkanı Yardımcısı Cevdet Yılmaz")
	if got != "Cumhurbaşkanı Yardımcısı yatırımları anlattı." {
		t.Errorf("RemoveRepeatedName = %q", got)
	}
}

func TestTrimToLimit(t *testing.T) {
	if got := TrimToLimit("aaa bbb ccc ddd", 10); got != "aaa bbb…" {
		t.Errorf("TrimToLimit = %q", got)
	}
	if got := TrimToLimit("kısa", 10); got != "kısa" {
		t.Errorf("short text changed: %q", got)
	}
	if got := TrimToLimit("aaa, bbb ccc ddd", 9); got != "aaa…" {
		t.Errorf("trailing comma not trimmed: %q", got)
	}
}

func TestScoreCandidate(t *testing.T) {
	if got := ScoreCandidate("Merkez Bankası faizi sabit tuttu."); got != 5 {
		t.Errorf("score = %d, want 5", got)
	}
	if got := ScoreCandidate("ABD NATO AB ve TBMM BRICS karar verdi."); got != 3 {
		t.Errorf("shouting score = %d, want 3", got)
	}
	long := "Merkez Bankası politika faizini yüzde elli seviyesinde sabit tuttu ve enflasyon görünümünde belirgin bir iyileşme görülene kadar sıkı duruşun süreceğini açıkladı."
	if got := ScoreCandidate(long); got != 8 {
		t.Errorf("long score = %d, want 8", got)
	}
}

func TestRewritePrefersSpeakerForm(t *testing.T) {
	title := `Bakan Şimşek: "Enflasyon düşecek" | Haber7`
	summary := "<p>Hazine ve Maliye Bakanı Mehmet Şimşek, yılsonu hedeflerini paylaştı. Detaylar.</p>"
	want := "Bakan Şimşek: Enflasyon düşecek. Hazine ve Maliye Bakanı Mehmet Şimşek, yılsonu hedeflerini paylaştı."
	if got := Rewrite(title, summary, RewriteOptions{}); got != want {
		t.Errorf("Rewrite = %q, want %q", got, want)
	}
}

func TestRewriteFallsBackToTitle(t *testing.T) {
	got := Rewrite("SON DAKİKA: İstanbul'da deprem", "", RewriteOptions{})
	if got != "İstanbul'da deprem." {
		t.Errorf("Rewrite = %q", got)
	}
}

func TestRewriteExtraCandidateCompetes(t *testing.T) {
	extra := "Merkez Bankası politika faizini yüzde elli seviyesinde sabit tuttu ve enflasyon görünümünde belirgin bir iyileşme görülene kadar sıkı duruşun süreceğini açıkladı."
	got := Rewrite("Faiz kararı", "", RewriteOptions{Extra: []string{extra}})
	if got != extra {
		t.Errorf("expected the higher scoring extra candidate, got %q", got)
	}
}

func TestRewriteRespectsLimit(t *testing.T) {
	title := strings.Repeat("Uzun başlık kelimesi ", 30)
	got := Rewrite(title, "", RewriteOptions{Limit: 100})
	if RuneLen(got) > 100 {
		t.Errorf("rewrite length %d exceeds limit", RuneLen(got))
	}
}

func TestCandidatesCutTitleEndsText(t *testing.T) {
	title := "Kısa " + strings.Repeat("a", 120)
	summary := "Politika faizi yüzde 50'de sabit tutuldu."
	for _, c := range Candidates(title, summary, 100) {
		if strings.Contains(c.Text, "……") {
			t.Errorf("%s: doubled ellipsis in %q", c.Origin, c.Text)
		}
		if i := strings.Index(c.Text, "…"); i >= 0 && i != len(c.Text)-len("…") {
			t.Errorf("%s: text continues after the cut: %q", c.Origin, c.Text)
		}
		if RuneLen(c.Text) > 100 {
			t.Errorf("%s: length %d", c.Origin, RuneLen(c.Text))
		}
	}
}

func TestFixAcronymApostrophes(t *testing.T) {
	in := "ABD den açıklama geldi, XYZ den değil. NATO ya katıldı. ABD deniz kuvvetleri."
	want := "ABD'den açıklama geldi, XYZ den değil. NATO'ya katıldı. ABD deniz kuvvetleri."
	if got := FixAcronymApostrophes(in); got != want {
		t.Errorf("FixAcronymApostrophes = %q, want %q", got, want)
	}
}

func TestCompleteMissingTitles(t *testing.T) {
	cases := map[string]string{
		"ABD yönetimi açıklama yaptı ve Başkanı John Doe konuştu.": "ABD yönetimi açıklama yaptı ve ABD Başkanı John Doe konuştu.",
		"Başkanı John Doe konuştu.":                                "Başkanı John Doe konuştu.",
		"ABD Başkanı John Doe konuştu.":                            "ABD Başkanı John Doe konuştu.",
	}
	for in, want := range cases {
		if got := CompleteMissingTitles(in); got != want {
			t.Errorf("CompleteMissingTitles(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestInsertMissingQuotes(t *testing.T) {
	got := InsertMissingQuotes("Biz hazırız dedi. Toplantı bitti.")
	want := `"Biz hazırız." dedi. Toplantı bitti.`
	if got != want {
		t.Errorf("InsertMissingQuotes = %q, want %q", got, want)
	}
	quoted := `Lider, "Reformlar sürecek" dedi.`
	if got := InsertMissingQuotes(quoted); got != quoted {
		t.Errorf("already quoted sentence changed: %q", got)
	}
	if got := InsertMissingQuotes("Bakan görüşlerini ifade etti."); got != `"Bakan görüşlerini." ifade etti.` {
		t.Errorf("two word verb: %q", got)
	}
}

func TestSplitIntoTopics(t *testing.T) {
	got := SplitIntoTopics("Ankara'da toplantı yapıldı. Ankara'da karar çıktı. İzmir'de yağmur var.", 3)
	want := []string{"Ankara'da toplantı yapıldı. Ankara'da karar çıktı.", "İzmir'de yağmur var."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitIntoTopics = %q, want %q", got, want)
	}

	got = SplitIntoTopics("Ankara'da toplantı yapıldı. Ankara'da karar çıktı. Vali hazırız dedi.", 1)
	want = []string{"Vali hazırız dedi. Ankara'da toplantı yapıldı. Ankara'da karar çıktı."}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SplitIntoTopics with speech = %q, want %q", got, want)
	}
}

func TestCompressSentences(t *testing.T) {
	if got := CompressSentences("Bir iki. Üç dört. Beş altı.", 2, 220); got != "Bir iki. Üç dört." {
		t.Errorf("CompressSentences = %q", got)
	}
	if got := CompressSentences("Bir iki. Üç dört. Beş altı.", 2, 10); got != "Bir iki." {
		t.Errorf("CompressSentences char cap = %q", got)
	}
}

func TestProcessItem(t *testing.T) {
	r := ProcessItem("Biz  hazırız dedi . ABD den yeni paket geldi.")
	want := `"Biz hazırız." dedi. ABD'den yeni paket geldi.`
	if r.Cleaned != want {
		t.Errorf("Cleaned = %q, want %q", r.Cleaned, want)
	}
	if len(r.Summaries) == 0 {
		t.Fatal("expected at least one summary")
	}
	for _, s := range r.Summaries {
		if RuneLen(s.Text) > 220 {
			t.Errorf("summary too long: %q", s.Text)
		}
	}
}

func TestCleanPostText(t *testing.T) {
	got := CleanPostText("RT @haber: Maç başladı https://t.co/x #spor #futbol")
	if got != "@haber: Maç başladı" {
		t.Errorf("CleanPostText = %q", got)
	}
}

func TestParaphrase(t *testing.T) {
	if got := Paraphrase("Maçı bugün"); got != "karşılaşması bugün itibarıyla." {
		t.Errorf("Paraphrase = %q", got)
	}
}

func TestIsTurkish(t *testing.T) {
	cases := []struct {
		text, hint string
		want       bool
	}{
		{"Hello world", "", false},
		{"Hello world", "tr", true},
		{"Şampiyon belli oldu", "", true},
		{"Match on TRT tonight", "", true},
	}
	for _, c := range cases {
		if got := IsTurkish(c.text, c.hint); got != c.want {
			t.Errorf("IsTurkish(%q, %q) = %v", c.text, c.hint, got)
		}
	}
}

func TestClampAndCredit(t *testing.T) {
	got := Clamp(strings.Repeat("a", 300), MaxPostLen)
	if RuneLen(got) != MaxPostLen || !strings.HasSuffix(got, "…") {
		t.Errorf("Clamp length %d", RuneLen(got))
	}
	if got := Credit("abc", " — Kaynak: @x", MaxPostLen); got != "abc — Kaynak: @x" {
		t.Errorf("Credit = %q", got)
	}
	long := Credit(strings.Repeat("b", 300), " — Kaynak: @x", MaxPostLen)
	if RuneLen(long) != MaxPostLen {
		t.Errorf("credited length %d", RuneLen(long))
	}
	if got := Clamp("abc", 0); got != "" {
		t.Errorf("Clamp zero limit = %q", got)
	}
	if got := Credit("abc", " — Kaynak: @uzunhesap", 5); RuneLen(got) > 5 {
		t.Errorf("Credit tiny limit = %q", got)
	}
}

func TestNaturalTruncate(t *testing.T) {
	got := NaturalTruncate("Birinci cümle burada bitti. İkinci cümle ise çok daha uzun ve devam ediyor", 40)
	if got != "Birinci cümle burada bitti." {
		t.Errorf("NaturalTruncate sentence = %q", got)
	}
	if got := NaturalTruncate("aaaa bbbb cccc dddd eeee", 12); got != "aaaa bbbb…" {
		t.Errorf("NaturalTruncate word = %q", got)
	}
	for _, limit := range []int{0, -14} {
		if got := NaturalTruncate("aaaa bbbb cccc", limit); got != "" {
			t.Errorf("NaturalTruncate(%d) = %q", limit, got)
		}
	}
}

func TestSmartJoinAndFragments(t *testing.T) {
	if got := SmartJoin([]string{"Dolar rekor kırdı.", "", "dolar rekor kırdı.", "Altın düştü."}); got != "Dolar rekor kırdı. Altın düştü." {
		t.Errorf("SmartJoin = %q", got)
	}
	if got := CleanFragment("•  Faiz &amp; enflasyon "); got != "Faiz & enflasyon" {
		t.Errorf("CleanFragment = %q", got)
	}
}
