package controllers

import (
	"io"
	"net/http"
	"time"
	"unicode/utf8"

	"hostwatch/internal/services"

	"github.com/gin-gonic/gin"
)

// maxLogUpload caps the analyzed file size
const maxLogUpload = 10 << 20

// AnalyzeLogs counts levels and common messages in an uploaded log file
func AnalyzeLogs(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil || file.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No log file provided"})
		return
	}
	if file.Size > maxLogUpload {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "log file too large"})
		return
	}

	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	defer f.Close()

	content, err := io.ReadAll(io.LimitReader(f, maxLogUpload))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !utf8.Valid(content) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "log file must be UTF-8 text"})
		return
	}

	c.JSON(http.StatusOK, services.AnalyzeLogs(string(content), time.Now()))
}
