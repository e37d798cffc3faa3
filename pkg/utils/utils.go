// Package utils 提供指针与解引用等通用工具
package utils

// StringPtr 返回字符串指针
func StringPtr(s string) *string {
	return &s
}

// Float64Ptr 返回 float64 指针
func Float64Ptr(f float64) *float64 {
	return &f
}

// DerefString 解引用字符串指针
func DerefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// DerefFloat64 解引用 float64 指针
func DerefFloat64(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
