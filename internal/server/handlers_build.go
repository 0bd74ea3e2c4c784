package server

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"patchvault/internal/models"
	"patchvault/internal/vault"
)

// handleBuild streams the archive for a (distribution, patch) pair. Built
// archives are cached in the object backend under their derived key, so a
// repeated request is served without re-resolving. Builds with a custom
// server address bypass the cache: the key does not encode the address.
func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	if !s.acquireLimiter(s.buildLimiter, w, r, "build") {
		return
	}
	defer s.releaseLimiter(s.buildLimiter)

	dist, ok := s.pathDistribution(w, r)
	if !ok {
		return
	}
	patch, ok := s.pathPatch(w, r)
	if !ok {
		return
	}
	address := strings.TrimSpace(r.URL.Query().Get("address"))

	ctx := r.Context()
	normalized, err := s.resolver.NormalizePatch(ctx, dist, patch)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	key := vault.ArchiveObjectKey(dist, normalized)
	if address == "" {
		cached, err := s.objects.StatObject(ctx, key)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		if cached {
			s.log().Info("serving cached build", "dist", dist, "patch", normalized)
			rc, err := s.objects.GetObject(ctx, key)
			if err != nil {
				s.writeServiceError(w, r, err)
				return
			}
			defer rc.Close()
			writeArchiveHeaders(w, dist, normalized)
			if _, err := io.Copy(w, rc); err != nil {
				s.log().Warn("streaming cached build interrupted", "dist", dist, "patch", normalized, "error", err)
			}
			return
		}
	}

	// Build to a temp file first: headers and body are only sent once the
	// archive is known to be complete.
	tmp, err := os.CreateTemp("", "patchvault-archive-*")
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	opts := vault.BuildOptions{Address: address}
	if err := s.builder.Build(ctx, dist, normalized, tmp, opts); err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	size, err := archiveSize(tmp)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	if address == "" {
		if err := s.objects.PutObject(ctx, key, tmp, size); err != nil {
			// A failed cache write does not fail the request.
			s.log().Warn("caching build failed", "key", key, "error", err)
		}
		if _, err := tmp.Seek(0, io.SeekStart); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
	}

	writeArchiveHeaders(w, dist, normalized)
	w.Header().Set("Content-Length", fmt.Sprintf("%d", size))
	if _, err := io.Copy(w, tmp); err != nil {
		s.log().Warn("streaming build interrupted", "dist", dist, "patch", normalized, "error", err)
	}
}

func writeArchiveHeaders(w http.ResponseWriter, dist models.Distribution, patch int) {
	w.Header().Set("Content-Type", "application/gzip")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", vault.ArchiveName(dist, patch)+".tar.gz"))
}

func archiveSize(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return info.Size(), nil
}
