package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	"video-sentinel/internal/infrastructure/storage"
	"video-sentinel/internal/interfaces/http/dto"
	"video-sentinel/pkg/errors"
)

// VideoHandler 本地录像文件服务
type VideoHandler struct {
	root string
}

// NewVideoHandler 创建录像文件处理器，root 为录像根目录
func NewVideoHandler(root string) *VideoHandler {
	abs, err := filepath.Abs(root)
	if err != nil {
		abs = filepath.Clean(root)
	}
	return &VideoHandler{root: abs}
}

// Serve 按 Range 返回录像文件
// @Summary 播放录像
// @Description 支持 Range 请求；路径限定在录像目录内
// @Tags Videos
// @Produce octet-stream
// @Param path path string true "文件路径（绝对路径或相对录像目录）"
// @Param token query string false "访问令牌"
// @Success 200
// @Success 206
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /videos/{path} [get]
func (h *VideoHandler) Serve(c *gin.Context) {
	path, ok := h.resolve(c.Param("path"))
	if !ok {
		dto.Forbidden(c, "access denied")
		return
	}

	f, err := os.Open(path)
	if err != nil {
		handleError(c, errors.ErrFileNotFound, "file not found")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		handleError(c, errors.ErrFileNotFound, "file not found")
		return
	}

	c.Header("Content-Type", storage.ContentType(path))
	c.Header("Accept-Ranges", "bytes")
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), f)
}

// resolve 将请求路径映射到录像目录内的文件，越界返回 false
// 兼容客户端直接传入 local_path（绝对路径）
func (h *VideoHandler) resolve(raw string) (string, bool) {
	raw = strings.TrimPrefix(raw, "/")
	if raw == "" {
		return "", false
	}

	candidate := filepath.FromSlash(raw)
	if abs := string(filepath.Separator) + candidate; strings.HasPrefix(abs, h.root+string(filepath.Separator)) {
		candidate = abs
	} else {
		candidate = filepath.Join(h.root, candidate)
	}
	candidate = filepath.Clean(candidate)

	rel, err := filepath.Rel(h.root, candidate)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	return candidate, true
}
