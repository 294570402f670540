package security

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/dgrijalva/jwt-go"
)

const (
	TOKEN_KEY = "Authorization"
)

type TokenClaims struct {
	TenantID   string            `json:"tid"`
	User       string            `json:"u"` // 用户唯一标识
	Fields     map[string]string `json:"f"`
	ExpireTime int64             `json:"exp"` // 过期时间 时间戳
	NotBefore  int64             `json:"nbf"` // 生效时间 时间戳
}

const (
	ROLE_KEY       = "role"
	DEPARTMENT_KEY = "department"
)

func NewTokenClaims(tenantID, userID, role, departmentID string, expireTime int64) TokenClaims {
	return TokenClaims{
		TenantID: tenantID,
		User:     userID,
		Fields: map[string]string{
			ROLE_KEY:       role,
			DEPARTMENT_KEY: departmentID,
		},
		ExpireTime: expireTime,
		NotBefore:  time.Now().Unix() - 1,
	}
}

func (t TokenClaims) GetRole() string {
	return t.Field(ROLE_KEY)
}

func (t TokenClaims) GetDepartment() string {
	return t.Field(DEPARTMENT_KEY)
}

func (t TokenClaims) GetUser() string {
	return t.User
}

func (t TokenClaims) Field(key string) string {
	if t.Fields == nil {
		return ""
	}

	return t.Fields[key]
}

func GenerateJWT(info TokenClaims, secret []byte) (string, error) {
	claims := jwt.MapClaims{}

	t := reflect.TypeOf(info)
	v := reflect.ValueOf(info)

	for i := 0; i < t.NumField(); i++ {
		tag := t.Field(i).Tag.Get("json")
		claims[tag] = v.Field(i).Interface()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

var ErrInvalidJWT = errors.New("invalid token")

func VerifyToken(tokenString string, secret []byte) (*TokenClaims, error) {
	claims, err := ParseJWT(tokenString, secret)
	if err != nil {
		return nil, err
	}

	if claims.ExpireTime < time.Now().Unix() || claims.NotBefore > time.Now().Unix() {
		return nil, fmt.Errorf("expired token, %w", ErrInvalidJWT)
	}

	return claims, nil
}

func ParseJWT(tokenString string, secret []byte) (*TokenClaims, error) {
	result := &TokenClaims{}
	_, err := jwt.Parse(tokenString, func(i2 *jwt.Token) (interface{}, error) {
		if _, ok := i2.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v, %w", i2.Header["alg"], ErrInvalidJWT)
		}
		return secret, nil
	})

	if err != nil {
		return nil, err
	}

	parts := strings.Split(tokenString, ".")
	claimBytes, _ := jwt.DecodeSegment(parts[1])

	if err = json.Unmarshal(claimBytes, &result); err != nil {
		return result, fmt.Errorf("%s, %w", err.Error(), ErrInvalidJWT)
	}
	return result, nil
}
