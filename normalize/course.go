package normalize

import (
	"strings"
	"unicode"
)

var ordinalWords = map[string]string{
	"primero":  "1",
	"primer":   "1",
	"primera":  "1",
	"segundo":  "2",
	"segunda":  "2",
	"tercero":  "3",
	"tercer":   "3",
	"tercera":  "3",
	"cuarto":   "4",
	"cuarta":   "4",
	"quinto":   "5",
	"quinta":   "5",
	"sexto":    "6",
	"sexta":    "6",
	"septimo":  "7",
	"septima":  "7",
	"setimo":   "7",
	"setima":   "7",
	"octavo":   "8",
	"octava":   "8",
}

// ordinalSuffixes are the abbreviated-ordinal endings written right after the
// number: 1ro, 2do, 3er, 4to, 7mo, 8vo, 9no and their feminine forms.
var ordinalSuffixes = map[string]bool{
	"ro": true, "ero": true, "er": true, "ra": true, "era": true,
	"do": true, "da": true,
	"to": true, "ta": true,
	"mo": true, "ma": true,
	"vo": true, "va": true,
	"no": true, "na": true,
}

// romanNumerals only apply in front of a level word ("II Medio").
var romanNumerals = map[string]string{
	"i": "1", "ii": "2", "iii": "3", "iv": "4",
	"v": "5", "vi": "6", "vii": "7", "viii": "8",
}

var levelWords = map[string]string{
	"basico": "basica",
	"basica": "basica",
	"bas":    "basica",
	"medio":  "media",
	"media":  "media",
}

// fillerWords carry no identity: "1° Año de Enseñanza Media" is "1media".
var fillerWords = map[string]bool{
	"ano":       true,
	"anos":      true,
	"anio":      true,
	"de":        true,
	"del":       true,
	"curso":     true,
	"nivel":     true,
	"grado":     true,
	"educacion": true,
	"ensenanza": true,
}

var sectionWords = map[string]bool{
	"seccion":   true,
	"secciones": true,
	"secc":      true,
	"sec":       true,
}

type run struct {
	text  string
	digit bool
}

// splitRuns breaks s into maximal runs of digits and of letters. Everything
// else, including the degree sign, separates runs and is dropped.
func splitRuns(s string) []run {
	var runs []run
	var cur []rune
	curDigit := false

	flush := func() {
		if len(cur) > 0 {
			runs = append(runs, run{text: string(cur), digit: curDigit})
			cur = cur[:0]
		}
	}

	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			if !curDigit {
				flush()
			}
			curDigit = true
			cur = append(cur, r)
		case isLetter(r):
			if curDigit {
				flush()
			}
			curDigit = false
			cur = append(cur, r)
		default:
			flush()
		}
	}
	flush()

	return runs
}

// nextLevel reports whether the next non-filler run after i is a level word.
func nextLevel(runs []run, i int) bool {
	for j := i + 1; j < len(runs); j++ {
		if fillerWords[runs[j].text] {
			continue
		}
		_, ok := levelWords[runs[j].text]
		return ok
	}
	return false
}

func rewriteCourse(s string) string {
	runs := splitRuns(fold(s))
	out := make([]run, 0, len(runs))

	for i, r := range runs {
		if r.digit {
			out = append(out, r)
			continue
		}
		if d, ok := ordinalWords[r.text]; ok {
			out = append(out, run{text: d, digit: true})
			continue
		}
		if ordinalSuffixes[r.text] && len(out) > 0 && out[len(out)-1].digit {
			continue
		}
		if fillerWords[r.text] {
			continue
		}
		if lvl, ok := levelWords[r.text]; ok {
			out = append(out, run{text: lvl})
			continue
		}
		if d, ok := romanNumerals[r.text]; ok && nextLevel(runs, i) {
			out = append(out, run{text: d, digit: true})
			continue
		}
		out = append(out, r)
	}

	var b strings.Builder
	for _, r := range out {
		b.WriteString(r.text)
	}
	return b.String()
}

func rewriteSection(s string) string {
	var b strings.Builder
	for _, w := range words(fold(s)) {
		if sectionWords[w] {
			continue
		}
		b.WriteString(w)
	}
	return b.String()
}

// fixpoint applies rewrite until the output stops changing. Joining runs
// can create a new word ("bas"+"ico"), so a single pass is not idempotent.
func fixpoint(text string, rewrite func(string) string) string {
	s := rewrite(text)
	for i := 1; i < maxPasses; i++ {
		next := rewrite(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

// CourseToken normalizes a course label into its grade digit followed by its
// level word: "1ro Básico", "1° Básico", "Primero Básico" and "1ro Basico"
// all become "1basica"; "IV Medio" becomes "4media".
func CourseToken(text string) string {
	return fixpoint(text, rewriteCourse)
}

// SectionToken normalizes a section label: "Sección A", "Sec. A" and "A"
// all become "a".
func SectionToken(text string) string {
	return fixpoint(text, rewriteSection)
}

// PlacementKey joins the course and section tokens. The separator never
// appears inside a token.
func PlacementKey(course, section string) string {
	return CourseToken(course) + "|" + SectionToken(section)
}

// SamePlacement reports whether two course/section label pairs normalize
// to the same placement.
func SamePlacement(courseA, sectionA, courseB, sectionB string) bool {
	return PlacementKey(courseA, sectionA) == PlacementKey(courseB, sectionB)
}
