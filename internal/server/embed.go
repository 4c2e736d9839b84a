package server

import (
	"embed"
	"io/fs"
	"net/http"

	"facecapture/internal/log"
)

//go:embed web
var embedFS embed.FS

// GetStaticFS は埋め込み静的ファイルのファイルシステムを返す
func GetStaticFS() http.FileSystem {
	staticFS, err := fs.Sub(embedFS, "web")
	if err != nil {
		log.Error("埋め込み静的ファイルシステムの作成に失敗", "error", err)
		panic(err)
	}
	return http.FS(staticFS)
}

// getIndexHTML はindex.htmlの内容を返す
func getIndexHTML() []byte {
	data, err := embedFS.ReadFile("web/index.html")
	if err != nil {
		log.Error("埋め込みindex.htmlの読み込みに失敗", "error", err)
		return nil
	}
	return data
}
