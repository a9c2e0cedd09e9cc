package realtime

import (
	"fmt"
	"strings"
	"time"

	"labfleet-ng/models/portal"

	"github.com/golang-jwt/jwt/v4"
)

// Principal 鉴权成功后解析出的连接身份
type Principal struct {
	UserID     int64
	Name       string
	Role       portal.Role
	Institute  string
	Department string
}

// Claims 承载身份信息的JWT声明
type Claims struct {
	UserID     int64  `json:"uid"`
	Name       string `json:"name"`
	Role       string `json:"role"`
	Institute  string `json:"institute"`
	Department string `json:"department"`
	jwt.RegisteredClaims
}

// TokenAuthenticator 基于HMAC签名的Bearer令牌鉴权器
type TokenAuthenticator struct {
	secret []byte
}

// NewTokenAuthenticator 创建令牌鉴权器
func NewTokenAuthenticator(secret string) *TokenAuthenticator {
	return &TokenAuthenticator{secret: []byte(secret)}
}

// Authenticate 校验Bearer令牌并解析连接身份.
// 令牌缺失、签名非法、过期或角色未知时返回错误，连接应被拒绝。
func (a *TokenAuthenticator) Authenticate(bearer string) (*Principal, error) {
	bearer = strings.TrimSpace(bearer)
	if bearer == EmptyToken {
		return nil, fmt.Errorf("missing bearer token")
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(bearer, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid bearer token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("bearer token is not valid")
	}

	role := portal.Role(claims.Role)
	if !role.IsValid() {
		return nil, fmt.Errorf("unknown role %q in token", claims.Role)
	}

	return &Principal{
		UserID:     claims.UserID,
		Name:       claims.Name,
		Role:       role,
		Institute:  claims.Institute,
		Department: claims.Department,
	}, nil
}

// Sign 为指定身份签发令牌（供开发环境与测试使用）
func (a *TokenAuthenticator) Sign(p *Principal, ttl time.Duration) (string, error) {
	claims := &Claims{
		UserID:     p.UserID,
		Name:       p.Name,
		Role:       string(p.Role),
		Institute:  p.Institute,
		Department: p.Department,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

const (
	// EmptyToken 空令牌
	EmptyToken = ""
)
