package binder

import (
	"regexp"
	"strings"
)

// keywordSet maps a canonical label to the keywords that signal it.
// Lexicons are ordered slices: earlier entries win first-match lookups.
type keywordSet struct {
	label    string
	keywords []string
}

// firstMatch returns the label of the first set with a keyword in lower.
func firstMatch(sets []keywordSet, lower string) (string, bool) {
	for _, s := range sets {
		if containsAny(lower, s.keywords) {
			return s.label, true
		}
	}
	return "", false
}

// allMatches returns every label with a keyword in lower, in lexicon order.
func allMatches(sets []keywordSet, lower string) []string {
	var out []string
	for _, s := range sets {
		if containsAny(lower, s.keywords) {
			out = append(out, s.label)
		}
	}
	return out
}

func containsAny(lower string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

var emotionLexicon = []keywordSet{
	{"happy", []string{"happy", "joy", "smile", "laugh", "excited", "cheerful", "delighted"}},
	{"sad", []string{"sad", "cry", "tears", "upset", "unhappy", "miserable", "depressed"}},
	{"worried", []string{"worried", "anxious", "nervous", "scared", "afraid", "frightened", "fear"}},
	{"angry", []string{"angry", "mad", "furious", "annoyed", "frustrated", "rage"}},
	{"surprised", []string{"surprised", "amazed", "shocked", "astonished", "wondered"}},
	{"excited", []string{"excited", "thrilled", "eager", "enthusiastic"}},
	{"calm", []string{"calm", "peaceful", "relaxed", "serene"}},
	{"confused", []string{"confused", "puzzled", "bewildered", "perplexed"}},
}

var settingLexicon = []keywordSet{
	{"bedroom", []string{"bedroom", "bed", "pillow", "blanket"}},
	{"kitchen", []string{"kitchen", "table", "eating", "breakfast", "dinner"}},
	{"living_room", []string{"living room", "couch", "sofa", "tv", "television"}},
	{"bathroom", []string{"bathroom", "bath", "shower", "brush"}},
	{"garden", []string{"garden", "flowers", "grass", "outside"}},
	{"park", []string{"park", "playground", "swing", "slide"}},
	{"school", []string{"school", "classroom", "teacher", "desk"}},
	{"forest", []string{"forest", "trees", "woods", "path"}},
	{"beach", []string{"beach", "ocean", "sand", "waves"}},
	{"street", []string{"street", "road", "sidewalk", "cars"}},
}

var timeLexicon = []keywordSet{
	{"morning", []string{"morning", "sunrise", "dawn", "breakfast"}},
	{"afternoon", []string{"afternoon", "lunch", "noon"}},
	{"evening", []string{"evening", "sunset", "dusk", "dinner"}},
	{"night", []string{"night", "dark", "bedtime", "moon", "stars"}},
}

var weatherLexicon = []keywordSet{
	{"sunny", []string{"sunny", "sun", "bright"}},
	{"rainy", []string{"rain", "rainy", "raining", "wet"}},
	{"cloudy", []string{"cloudy", "clouds", "overcast"}},
	{"snowy", []string{"snow", "snowy", "snowing"}},
	{"stormy", []string{"storm", "thunder", "lightning"}},
	{"windy", []string{"wind", "windy", "breeze"}},
}

// verb is one entry of the action lexicon. pose is empty for verbs that
// carry no body position (look, smile, cry).
type verb struct {
	lemma string
	forms []string
	pose  string
	re    *regexp.Regexp
}

var verbLexicon = compileVerbs([]verb{
	{lemma: "sit", forms: []string{"sit", "sat", "sitting", "sits"}, pose: "sitting"},
	{lemma: "stand", forms: []string{"stand", "stood", "standing", "stands"}, pose: "standing"},
	{lemma: "walk", forms: []string{"walk", "walked", "walking", "walks"}, pose: "walking"},
	{lemma: "run", forms: []string{"run", "ran", "running", "runs"}, pose: "running"},
	{lemma: "jump", forms: []string{"jump", "jumped", "jumping", "jumps"}, pose: "jumping"},
	{lemma: "sleep", forms: []string{"sleep", "slept", "sleeping", "sleeps"}, pose: "sleeping"},
	{lemma: "read", forms: []string{"read", "reading", "reads"}, pose: "sitting"},
	{lemma: "eat", forms: []string{"eat", "ate", "eating", "eats"}, pose: "sitting"},
	{lemma: "play", forms: []string{"play", "played", "playing", "plays"}, pose: "standing"},
	{lemma: "hug", forms: []string{"hug", "hugged", "hugging", "hugs"}, pose: "hugging"},
	{lemma: "wave", forms: []string{"wave", "waved", "waving", "waves"}, pose: "waving"},
	{lemma: "look", forms: []string{"look", "looked", "looking", "looks"}},
	{lemma: "smile", forms: []string{"smile", "smiled", "smiling", "smiles"}},
	{lemma: "cry", forms: []string{"cry", "cried", "crying", "cries"}},
})

// verbByForm resolves a lowercased surface form to its lexicon entry.
var verbByForm = indexVerbs(verbLexicon)

func compileVerbs(vs []verb) []verb {
	for i := range vs {
		vs[i].re = regexp.MustCompile(`(?i)\b(` + strings.Join(vs[i].forms, "|") + `)\b`)
	}
	return vs
}

func indexVerbs(vs []verb) map[string]verb {
	m := make(map[string]verb)
	for _, v := range vs {
		for _, f := range v.forms {
			m[f] = v
		}
	}
	return m
}

// object is one entry of the object lexicon; name is the canonical variant.
type object struct {
	name string
	re   *regexp.Regexp
}

var objectLexicon = compileObjects([][]string{
	{"bed", "beds"},
	{"chair", "chairs"},
	{"table", "tables"},
	{"book", "books"},
	{"toy", "toys"},
	{"ball", "balls"},
	{"teddy bear", "teddy", "bear"},
	{"bicycle", "bike"},
	{"car", "cars"},
	{"tree", "trees"},
	{"flower", "flowers"},
	{"door", "doors"},
	{"window", "windows"},
	{"lamp", "lamps", "light", "lights"},
})

func compileObjects(variants [][]string) []object {
	out := make([]object, 0, len(variants))
	for _, vs := range variants {
		out = append(out, object{
			name: vs[0],
			re:   regexp.MustCompile(`(?i)\b(` + strings.Join(vs, "|") + `)\b`),
		})
	}
	return out
}

var pronounRe = regexp.MustCompile(`(?i)\b(she|he|they)\b`)
