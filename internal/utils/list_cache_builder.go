package utils

import (
	"strconv"
	"strings"
	"time"
)

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(*s))
}

func timeOrEmpty(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func BuildExamListCacheKey(limit int, partnerID, status *string, from, to *time.Time) string {
	return "exams:list:v1:limit=" + strconv.Itoa(limit) +
		":partner=" + strOrEmpty(partnerID) +
		":status=" + strOrEmpty(status) +
		":from=" + timeOrEmpty(from) +
		":to=" + timeOrEmpty(to)
}

func BuildCheckupListCacheKey(limit int, status *string, from, to *time.Time) string {
	return "checkups:list:v1:limit=" + strconv.Itoa(limit) +
		":status=" + strOrEmpty(status) +
		":from=" + timeOrEmpty(from) +
		":to=" + timeOrEmpty(to)
}
