package modules

import (
	"github.com/cirm-data/portal/modules/funding"
	"github.com/cirm-data/portal/pkg/application"
)

var BuiltInModules = []application.Module{
	funding.NewModule(),
}

func Load(app application.Application, externalModules ...application.Module) error {
	for _, module := range externalModules {
		if err := module.Register(app); err != nil {
			return err
		}
	}
	return nil
}
