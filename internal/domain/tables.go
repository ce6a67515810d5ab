package domain

var Tables = []interface{}{
	&Category{},
	&Funko{},
	&User{},
}
