package mocks

//go:generate go run github.com/vektra/mockery/v2@v2.53.5 --name OverviewFetcher --dir ../usecase --output usecase --outpkg usecasemock --filename overview_fetcher_mock.go
