// Package model はドメインモデルを定義する。
package model

import "crypto/subtle"

// User は認証済みの利用者を表す。
// ExternalIDはGoogleのsubで、DB上は数値カラムに格納するが常に10進文字列として扱う。
// AccessTokenは現在有効なセッショントークンで、nilはログアウト状態を表す。
type User struct {
	ID          int64
	ExternalID  string
	FirstName   string
	LastName    string
	AccessToken *string
}

// HasAccessToken は保存済みトークンがtokenと一致するかを返す。
func (u *User) HasAccessToken(token string) bool {
	if u.AccessToken == nil || *u.AccessToken == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(*u.AccessToken), []byte(token)) == 1
}

// Profile はOAuthプロバイダーから取得した本人情報を表す。
type Profile struct {
	ExternalID string
	FirstName  string
	LastName   string
}
