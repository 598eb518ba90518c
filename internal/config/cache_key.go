package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key for a student's login session
func (r *CacheKeyStruct) StudentSessionKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// AttemptStartKey returns the cache key for an attempt's start instant
func (r *CacheKeyStruct) AttemptStartKey(assessmentID string, enrollmentID string) string {
	return fmt.Sprintf("enrollment:%s:assessment:%s:started_at", enrollmentID, assessmentID)
}

// AttemptAnswersKey returns the cache key for an attempt's autosaved answers
func (r *CacheKeyStruct) AttemptAnswersKey(assessmentID string, enrollmentID string) string {
	return fmt.Sprintf("enrollment:%s:assessment:%s:answers", enrollmentID, assessmentID)
}

// AssessmentDurationKey returns the cache key for an assessment's duration
func (r *CacheKeyStruct) AssessmentDurationKey(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:duration", assessmentID)
}

// AssessmentMonitorChannel returns the Redis PubSub channel for the live
// proctoring feed of an assessment
func (r *CacheKeyStruct) AssessmentMonitorChannel(assessmentID string) string {
	return fmt.Sprintf("assessment:%s:monitor", assessmentID)
}

var CacheKey = NewCacheKeyStruct()
