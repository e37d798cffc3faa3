// Package response 提供 HTTP 响应的统一包装格式
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body 统一响应结构
type Body struct {
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Success 返回 200 与数据
func Success(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{
		Message: "ok",
		Data:    data,
	})
}

// Created 返回 201 与数据
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{
		Message: "ok",
		Data:    data,
	})
}

// ErrorWithStatus 按指定 HTTP 状态码返回错误。code 为可选的业务错误码。
func ErrorWithStatus(c *gin.Context, status int, message string, code string) {
	c.JSON(status, Body{
		Code:    code,
		Message: message,
	})
}
