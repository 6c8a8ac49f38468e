package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		collection := core.NewBaseCollection("trains")

		collection.Fields.Add(
			&core.TextField{Name: "train_number", Required: true},
			&core.TextField{Name: "name", Required: true},
			&core.TextField{Name: "from_station", Required: true},
			&core.TextField{Name: "to_station", Required: true},
			&core.NumberField{Name: "total_seats", Required: true, OnlyInt: true},
			&core.TextField{Name: "fare"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_trains_train_number", true, "train_number", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("trains")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
