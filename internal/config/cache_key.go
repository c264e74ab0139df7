package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// StudentSessionKey returns the cache key holding a student's active token id
func (r *CacheKeyStruct) StudentSessionKey(studentID int64) string {
	return fmt.Sprintf("login:%d", studentID)
}

// QuestionPoolKey returns the cache key for a class/subject question pool of one test type
func (r *CacheKeyStruct) QuestionPoolKey(schoolID int64, className string, subjectID int64, testType string) string {
	return fmt.Sprintf("school:%d:class:%s:subject:%d:%s:questions", schoolID, className, subjectID, testType)
}

// LoginAttemptsKey returns the rate limit counter key for a client IP
func (r *CacheKeyStruct) LoginAttemptsKey(ip string) string {
	return fmt.Sprintf("ratelimit:login:%s", ip)
}

// SchoolResultsChannel returns the Redis PubSub channel carrying graded results for a school
func (r *CacheKeyStruct) SchoolResultsChannel(schoolID int64) string {
	return fmt.Sprintf("school:%d:results", schoolID)
}

var CacheKey = NewCacheKeyStruct()
