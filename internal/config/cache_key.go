package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// CourseSeatsChannel returns the Redis PubSub channel carrying seat changes of a course
func (r *CacheKeyStruct) CourseSeatsChannel(courseID int) string {
	return fmt.Sprintf("course:%d:seats", courseID)
}

var CacheKey = NewCacheKeyStruct()
