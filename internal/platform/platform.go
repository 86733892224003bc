// Package platform reports host properties that change how directory
// watching behaves.
package platform

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
)

// Kind is the detected host kind.
type Kind string

const (
	KindLinux   Kind = "linux"
	KindWSL     Kind = "wsl"
	KindMacOS   Kind = "macos"
	KindBSD     Kind = "bsd"
	KindUnknown Kind = "unknown"
)

var (
	detectOnce sync.Once
	detected   Kind
)

// Detect returns the host kind. The result is cached.
func Detect() Kind {
	detectOnce.Do(func() {
		detected = detect(runtime.GOOS, os.Getenv("WSL_DISTRO_NAME"), readProcVersion())
	})
	return detected
}

func readProcVersion() string {
	data, err := os.ReadFile("/proc/version")
	if err != nil {
		return ""
	}
	return string(data)
}

func detect(goos, wslDistro, procVersion string) Kind {
	switch goos {
	case "linux":
		if wslDistro != "" || strings.Contains(strings.ToLower(procVersion), "microsoft") {
			return KindWSL
		}
		return KindLinux
	case "darwin":
		return KindMacOS
	case "freebsd", "openbsd", "netbsd", "dragonfly":
		return KindBSD
	default:
		return KindUnknown
	}
}

// Mount is one /proc/mounts line.
type Mount struct {
	Point  string
	FSType string
}

// parseMounts reads the mount point and type columns of /proc/mounts.
// Octal escapes in mount points (\040 for space) are decoded.
func parseMounts(data string) []Mount {
	var mounts []Mount
	for _, line := range strings.Split(data, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		mounts = append(mounts, Mount{Point: unescapeMount(fields[1]), FSType: fields[2]})
	}
	return mounts
}

func unescapeMount(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+3 < len(s) && isOctal(s[i+1]) && isOctal(s[i+2]) && isOctal(s[i+3]) {
			b.WriteByte((s[i+1]-'0')<<6 | (s[i+2]-'0')<<3 | (s[i+3] - '0'))
			i += 3
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func isOctal(c byte) bool { return c >= '0' && c <= '7' }

// fsTypeFor returns the type of the longest mount point containing path.
func fsTypeFor(mounts []Mount, path string) string {
	var best Mount
	for _, m := range mounts {
		if !within(path, m.Point) {
			continue
		}
		if len(m.Point) > len(best.Point) {
			best = m
		}
	}
	return best.FSType
}

func within(path, mount string) bool {
	if mount == "/" {
		return strings.HasPrefix(path, "/")
	}
	return path == mount || strings.HasPrefix(path, mount+"/")
}

// WatchWarning explains why change notification may not work for dir, or
// returns "" when it should. Network and FUSE mounts do not deliver
// inotify events for changes made elsewhere.
func WatchWarning(dir string) string {
	if runtime.GOOS != "linux" {
		return ""
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	data, err := os.ReadFile("/proc/mounts")
	if err != nil {
		return ""
	}
	return warningFor(fsTypeFor(parseMounts(string(data)), abs))
}

func warningFor(fsType string) string {
	switch {
	case fsType == "9p":
		return "9p mount (WSL Windows drive): changes are not reported, run reindex"
	case fsType == "nfs" || fsType == "nfs4":
		return "NFS mount: remote changes may not be reported"
	case fsType == "cifs" || fsType == "smbfs" || fsType == "smb3":
		return "SMB mount: remote changes may not be reported"
	case strings.HasPrefix(fsType, "fuse.sshfs"):
		return "SSHFS mount: changes are not reported, run reindex"
	}
	return ""
}
