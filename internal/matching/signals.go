package matching

import (
	"regexp"
	"strings"
)

var (
	agencyDomain = regexp.MustCompile(`(?i)\b(brand(?:ing|s)?|campaigns?|content|creative|strateg(?:y|ies|ic)|social|design(?:s|ers?)?|production|produce|videos?|film(?:s|ing)?|motion|animat(?:ion|ions|ed)|copy(?:writing)?|marketing|advertis(?:ing|ements?)|media|photo(?:graphy|shoots?)?|digital|influencers?|pr|public relations|communications?|events?|activations?|visuals?|graphics?|logos?|storytelling)\b`)

	outOfScopeDomain = regexp.MustCompile(`(?i)\b(construction|civil works?|fit-?out|renovation|legal|law firm|litigation|contracts? review|hr|human resources|recruit(?:ment|ing)|payroll|it infrastructure|network(?:ing)? equipment|servers?|hardware|data ?cent(?:er|re)|cyber ?security|software licen[cs](?:e|es|ing)|facilit(?:y|ies)|cleaning|janitorial|catering|security guards?|maintenance|insurance|accounting|audit(?:ing)?|logistics|warehous(?:e|ing)|fleet)\b`)

	supervisoryHint = regexp.MustCompile(`(?i)\b(management|manage|managing|oversight|oversee|overseeing|coordinat(?:e|ion|ing)|supervis(?:e|ion|ing)|liaison|governance|administration)\b`)

	marketResearch = regexp.MustCompile(`(?i)\b(market research|consumer research|market stud(?:y|ies)|market surveys?|focus groups?|market analysis|audience research|market sizing|competitor research|competitive research|usage (?:and|&) attitudes?|brand health (?:tracking|stud(?:y|ies)))\b`)
)

// HasAgencySignal reports agency-adjacent language.
func HasAgencySignal(text string) bool { return agencyDomain.MatchString(text) }

// HasOutOfScopeSignal reports work from domains the agency never delivers.
func HasOutOfScopeSignal(text string) bool { return outOfScopeDomain.MatchString(text) }

// HasSupervisorySignal reports coordination or oversight duties.
func HasSupervisorySignal(text string) bool { return supervisoryHint.MatchString(text) }

// IsMarketResearch reports market-research work.
func IsMarketResearch(text string) bool { return marketResearch.MatchString(text) }

func lower(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
