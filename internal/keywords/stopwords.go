package keywords

import "strings"

// Built-in stopword set names.
const (
	English = "english"
	Russian = "russian"
	German  = "german"
)

var stopwordSets = map[string]string{
	English: `a about above after again against all also am an and any are aren as at be
		because been before being below between both but by can cannot could did do does
		doing don down during each etc few for from further had has have having he her here
		hers herself him himself his how i if in into is isn it its itself just let me more
		most must my myself no nor not now of off on once only or other ought our ours
		ourselves out over own per same she should so some such than that the their theirs
		them themselves then there these they this those through to too under until up upon
		us very via was we were what when where which while who whom why will with within
		without would you your yours yourself yourselves`,
	Russian: `а без более бы был была были было быть в вам вас весь во вот все всего всех
		вы где да даже для до его ее если есть еще же за здесь и из или им их к как какой
		когда кто ли либо мне может мы на над надо наш не него нее нет ни них но ну о об
		однако он она они оно от очень по под при с со так также такой там те тем то того
		тоже той только том ты у уже хотя чего чей чем что чтобы чья эта эти это я`,
	German: `aber alle als also am an auch auf aus bei bin bis bist da damit dann das dass
		dein dem den der des die dies diese dieser doch du durch ein eine einem einen einer
		es für hat hatte ich ihr im in ist ja kann kein mit muss nach nicht noch nur ob oder
		ohne sehr sein sich sie sind so über um und uns von vor war was weil wenn wer wie
		wir wird zu zum zur`,
}

// StopwordSets lists the names of the built-in sets.
func StopwordSets() []string {
	return []string{English, German, Russian}
}

func stopwordSet(name string) ([]string, bool) {
	words, ok := stopwordSets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, false
	}
	return strings.Fields(words), true
}
