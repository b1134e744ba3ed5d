//go:build wireinject

package app

import (
	"net/http"

	"github.com/google/wire"
	"github.com/steelvision/ingot/internal/conf"
	"github.com/steelvision/ingot/internal/data"
	"github.com/steelvision/ingot/internal/web/api"
)

func wireApp(bc *conf.Bootstrap) (http.Handler, func(), error) {
	panic(wire.Build(data.ProviderSet, api.ProviderSet))
}
