package chrome

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	log "github.com/sirupsen/logrus"
)

// AuthInfo is the saved portal login.
type AuthInfo struct {
	Cookies []*network.CookieParam `json:"cookies"`
}

// Helper function to set cookies
func SetCookies(pageCtx context.Context, cookies []*network.CookieParam) error {
	if len(cookies) == 0 {
		return nil
	}

	err := chromedp.Run(pageCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(cookies).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}
	return nil
}

// Helper function to get cookies
func GetCookies(pageCtx context.Context) ([]*network.Cookie, error) {
	var cookies []*network.Cookie
	err := chromedp.Run(pageCtx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to get cookies: %w", err)
	}
	return cookies, nil
}

// ToCookieParams converts cookies read from the browser into the form
// SetCookies accepts. Session cookies keep no expiry.
func ToCookieParams(cookies []*network.Cookie) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
			SameSite: c.SameSite,
		}
		if !c.Session && c.Expires > 0 {
			expires := cdp.TimeSinceEpoch(time.Unix(int64(c.Expires), 0))
			param.Expires = &expires
		}
		params = append(params, param)
	}
	return params
}

func ReadAuthInfo(authFilePath string) (*AuthInfo, error) {
	authData, err := os.ReadFile(authFilePath)
	if err != nil {
		return nil, err
	}
	var auth AuthInfo
	if err = json.Unmarshal(authData, &auth); err != nil {
		return nil, fmt.Errorf("failed to unmarshal auth info from %s: %w", authFilePath, err)
	}
	return &auth, nil
}

func WriteAuthInfo(authFilePath string, auth *AuthInfo) error {
	jsonData, err := json.MarshalIndent(auth, "", "  ")
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(authFilePath), 0755); err != nil {
		return err
	}
	return os.WriteFile(authFilePath, jsonData, 0600)
}

// LoadAuthInfo restores saved cookies into the page. A missing file is not an error.
func LoadAuthInfo(pageCtx context.Context, authFilePath string) error {
	if authFilePath == "" {
		return nil
	}
	auth, err := ReadAuthInfo(authFilePath)
	if os.IsNotExist(err) {
		log.Infof("Authentication state file not found at %s, log in through the browser window.", authFilePath)
		return nil
	}
	if err != nil {
		return err
	}

	if err = SetCookies(pageCtx, auth.Cookies); err != nil {
		return err
	}
	log.Debugf("Successfully loaded auth info from file %s", authFilePath)
	return nil
}

// SaveAuthInfo writes the page's current cookies to authFilePath.
func SaveAuthInfo(pageCtx context.Context, authFilePath string) error {
	cookies, err := GetCookies(pageCtx)
	if err != nil {
		return err
	}
	if err = WriteAuthInfo(authFilePath, &AuthInfo{Cookies: ToCookieParams(cookies)}); err != nil {
		return fmt.Errorf("failed to write auth info to %s: %w", authFilePath, err)
	}
	log.Debugf("Successfully wrote auth info to file %s", authFilePath)
	return nil
}
