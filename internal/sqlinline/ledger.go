package sqlinline

const QSelectBalance = `--sql 99d3ae95-c979-40de-a5f3-1c374201d079
select balance
from ledger_accounts
where account = $1::text;
`

const QCreditAccount = `--sql 0d46a1ad-3fc0-41a5-afb5-02fe10b38535
insert into ledger_accounts(account, balance, updated_at)
values ($1::text, $2::bigint, now())
on conflict (account) do update
set balance = ledger_accounts.balance + excluded.balance, updated_at = now();
`

const QDebitAccount = `--sql 3a423527-b0b5-4fef-add5-7b9e4bdbcb33
update ledger_accounts
set balance = balance - $2::bigint, updated_at = now()
where account = $1::text and balance >= $2::bigint;
`

const QInsertTransfer = `--sql fbcae3b6-b17f-44df-bf88-9f5dced52b2b
insert into ledger_transfers(id, from_account, to_account, amount, kind, campaign, created_at)
values ($1::uuid, $2::text, $3::text, $4::bigint, $5::text, $6::text, $7::timestamptz);
`

const QListTransfers = `--sql eb90d04b-641c-4b3d-a270-724d66114d77
select id::text, from_account, to_account, amount, kind, campaign, created_at
from ledger_transfers
where campaign = $1::text
order by seq asc;
`
