package middlewares

import (
	"bytes"
	"crypto/sha1"
	"encoding/gob"
	"encoding/hex"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"tobbedansen/utils"
)

type cachedBody struct {
	Status int
	Header map[string][]string
	Body   []byte
}

// 把 query 轉成 SHA1 雜湊字串，避免 Redis key 太長
func sha1Hex(s string) string {
	sum := sha1.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// CacheKeyFrom maps a request onto its Redis key. Only the public read
// endpoints are cached; everything else returns "".
func CacheKeyFrom(c *gin.Context) string {
	// 修改資料的請求(eg post)不會有快取
	if c.Request.Method != "GET" {
		return ""
	}
	rawq := c.Request.URL.RawQuery // Query String（網址後面的 ?...）

	// c.FullPath() 是路由模板，不是實際網址
	switch c.FullPath() {
	case "/api/event/current":
		return utils.CachePrefixEvents + "current:" + sha1Hex(rawq)
	case "/api/vessel-types":
		return utils.CachePrefixVesselTypes + "list:" + sha1Hex(rawq)
	default:
		return ""
	}
}

// ResponseCache serves cached 2xx responses from Redis and stores fresh ones
// for ttl. A Redis outage degrades to uncached responses.
func ResponseCache(rdb *redis.Client, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := CacheKeyFrom(c)
		if key == "" {
			c.Next() // 不快取的路由，直接跑下個 handler
			return
		}
		ctx := c.Request.Context()

		// 先查 Redis 有沒有這個 key (hit)
		if b, err := rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
			var hit cachedBody
			if err := gob.NewDecoder(bytes.NewReader(b)).Decode(&hit); err == nil {
				for k, vals := range hit.Header {
					for _, v := range vals {
						c.Writer.Header().Add(k, v) // 還原回應的 header
					}
				}
				c.Writer.Header().Set("X-Cache", "HIT")
				c.Status(hit.Status)            // 還原 HTTP 狀態碼
				_, _ = c.Writer.Write(hit.Body) // 還原 Response Body
				c.Abort()                       // 有快取就不跑 handler
				return
			}
		}

		// 沒 hit：換成 bufferedWriter 偷偷存一份回應
		bw := &bufferedWriter{ResponseWriter: c.Writer, buf: &bytes.Buffer{}}
		c.Writer = bw
		// Set before the handler writes; headers are frozen after the first write.
		c.Writer.Header().Set("X-Cache", "MISS")

		c.Next()

		// 只快取 2xx
		if bw.Status() < 200 || bw.Status() >= 300 {
			return
		}
		header := c.Writer.Header().Clone()
		header.Del("X-Cache") // hit 時會重新設定
		item := cachedBody{Status: bw.Status(), Header: header, Body: bw.buf.Bytes()}

		// 把編碼後的資料存進 Redis
		var o bytes.Buffer
		if err := gob.NewEncoder(&o).Encode(item); err == nil {
			_ = rdb.Set(ctx, key, o.Bytes(), ttl).Err()
		}
	}
}

type bufferedWriter struct {
	gin.ResponseWriter
	buf *bytes.Buffer
}

func (w *bufferedWriter) Write(b []byte) (int, error) {
	w.buf.Write(b)                   // 先寫到記憶體 buffer
	return w.ResponseWriter.Write(b) // 再寫到真正的網路回應
}
