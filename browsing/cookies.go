package browsing

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/integrationkit/apphost/framework/opt"
)

// CookieJar holds the cookies of a browsing session, at most one per name, in the order they
// were last set.
type CookieJar struct {
	cookies []*http.Cookie
	now     func() time.Time
	lock    sync.Mutex
}

// NewCookieJar creates an empty jar.
func NewCookieJar() *CookieJar {
	return &CookieJar{now: time.Now}
}

// Merge applies cookies set by a response. Each cookie replaces any existing cookie with the
// same name. A cookie whose expiry has passed, or whose MaxAge is negative, removes the name
// from the jar without being added; cookies without an expiry are kept.
func (j *CookieJar) Merge(cookies []*http.Cookie) {
	j.lock.Lock()
	defer j.lock.Unlock()
	now := j.now()
	for _, c := range cookies {
		j.remove(c.Name)
		if expired(c, now) {
			continue
		}
		copied := *c
		j.cookies = append(j.cookies, &copied)
	}
	kept := j.cookies[:0]
	for _, c := range j.cookies {
		if !expired(c, now) {
			kept = append(kept, c)
		}
	}
	j.cookies = kept
}

func expired(c *http.Cookie, now time.Time) bool {
	if c.MaxAge < 0 {
		return true
	}
	return !c.Expires.IsZero() && !c.Expires.After(now)
}

func (j *CookieJar) remove(name string) {
	for i, c := range j.cookies {
		if c.Name == name {
			j.cookies = append(j.cookies[:i], j.cookies[i+1:]...)
			return
		}
	}
}

// Cookies returns copies of the cookies in the jar.
func (j *CookieJar) Cookies() []*http.Cookie {
	j.lock.Lock()
	defer j.lock.Unlock()
	ret := make([]*http.Cookie, 0, len(j.cookies))
	for _, c := range j.cookies {
		copied := *c
		ret = append(ret, &copied)
	}
	return ret
}

// Get returns the cookie with the given name, if the jar has one. Names are compared
// exactly, as browsers do.
func (j *CookieJar) Get(name string) opt.Maybe[*http.Cookie] {
	j.lock.Lock()
	defer j.lock.Unlock()
	for _, c := range j.cookies {
		if c.Name == name {
			copied := *c
			return opt.Some(&copied)
		}
	}
	return opt.None[*http.Cookie]()
}

// Len returns the number of cookies in the jar.
func (j *CookieJar) Len() int {
	j.lock.Lock()
	defer j.lock.Unlock()
	return len(j.cookies)
}

// String formats the jar like a Cookie header.
func (j *CookieJar) String() string {
	parts := make([]string, 0, j.Len())
	for _, c := range j.Cookies() {
		parts = append(parts, c.Name+"="+c.Value)
	}
	return strings.Join(parts, "; ")
}
