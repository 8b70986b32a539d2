package capture

import (
	"net/url"
	"regexp"
	"strings"

	apperrors "video-sentinel/pkg/errors"
)

var allowedSchemes = map[string]bool{
	"rtsp":  true,
	"rtsps": true,
	"rtmp":  true,
	"http":  true,
	"https": true,
	"file":  true,
}

var labelUnsafe = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// ValidateStreamURL 校验流地址，返回可继续录制但值得提示的问题
func ValidateStreamURL(raw string) (*url.URL, []string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil, apperrors.Permanent(nil, "stream url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, nil, apperrors.Permanent(err, "malformed stream url")
	}
	scheme := strings.ToLower(u.Scheme)
	if !allowedSchemes[scheme] {
		return nil, nil, apperrors.Permanent(nil, "unsupported stream url scheme").WithDetail(u.Scheme)
	}
	if scheme != "file" && u.Host == "" {
		return nil, nil, apperrors.Permanent(nil, "stream url has no host")
	}

	var warnings []string
	if scheme == "rtsp" || scheme == "rtsps" {
		// 1935/1945 通常是 RTMP 端口
		if port := u.Port(); port == "1935" || port == "1945" {
			warnings = append(warnings, "rtsp url uses a port commonly used by rtmp; use rtmp:// if this is an rtmp stream")
		}
		if u.Path == "" || u.Path == "/" {
			warnings = append(warnings, "rtsp url has no path; many cameras require a stream path such as /live")
		}
	}
	return u, warnings, nil
}

// StreamLabel 流标签，配置为空时取主机名
func StreamLabel(u *url.URL, configured string) string {
	if configured != "" {
		return configured
	}
	name := u.Hostname()
	if name == "" {
		name = strings.TrimSuffix(u.Path, "/")
		if i := strings.LastIndex(name, "/"); i >= 0 {
			name = name[i+1:]
		}
	}
	name = strings.Trim(labelUnsafe.ReplaceAllString(name, "-"), "-")
	if name == "" {
		return "default"
	}
	if len(name) > 128 {
		name = name[:128]
	}
	return name
}
