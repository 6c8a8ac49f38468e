package migrations

import (
	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"

	"train-booking/models"
)

func init() {
	m.Register(func(app core.App) error {
		users, err := app.FindCollectionByNameOrId("users")
		if err != nil {
			return err
		}
		trains, err := app.FindCollectionByNameOrId("trains")
		if err != nil {
			return err
		}

		collection := core.NewBaseCollection("bookings")

		collection.Fields.Add(
			&core.TextField{Name: "pnr", Required: true},
			&core.RelationField{Name: "user_id", Required: true, MaxSelect: 1, CollectionId: users.Id},
			&core.RelationField{Name: "train_id", Required: true, MaxSelect: 1, CollectionId: trains.Id},
			&core.TextField{Name: "journey_date", Required: true}, // YYYY-MM-DD
			&core.TextField{Name: "passenger_name", Required: true},
			&core.NumberField{Name: "passenger_age", OnlyInt: true},
			&core.TextField{Name: "seat_number", Required: true},
			&core.TextField{Name: "coach_number", Required: true},
			&core.SelectField{
				Name:     "status",
				Required: true,
				Values: []string{
					models.StatusWaiting,
					models.StatusRAC,
					models.StatusConfirmed,
					models.StatusCancelled,
				},
				MaxSelect: 1,
			},
			&core.NumberField{Name: "waiting_position", OnlyInt: true},
			&core.TextField{Name: "fare"},
			&core.DateField{Name: "confirmed_at"},
			&core.AutodateField{Name: "created", OnCreate: true},
			&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
		)

		collection.AddIndex("idx_bookings_pnr", true, "pnr", "")
		collection.AddIndex("idx_bookings_journey", false, "train_id, journey_date, status", "")
		collection.AddIndex("idx_bookings_user", false, "user_id, train_id, journey_date", "")

		return app.Save(collection)
	}, func(app core.App) error {
		collection, err := app.FindCollectionByNameOrId("bookings")
		if err != nil {
			return err
		}
		return app.Delete(collection)
	})
}
