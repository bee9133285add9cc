package sqlinline

const QEnsureSchema = `--sql 5faa19de-c747-42c2-815e-4a1e31979205
create table if not exists campaigns (
    address       text primary key,
    id            text not null unique,
    name          text not null,
    description   text not null,
    category      text not null,
    location      text not null default '',
    metrics       jsonb not null default '[]'::jsonb,
    media_uris    jsonb not null default '[]'::jsonb,
    target_amount bigint not null check (target_amount > 0),
    raised_amount bigint not null default 0 check (raised_amount >= 0),
    status        text not null,
    authority     text not null,
    deposit       bigint not null default 0 check (deposit >= 0),
    version       bigint not null default 0,
    created_at    timestamptz not null,
    deadline      timestamptz not null
);
create table if not exists donation_receipts (
    address    text primary key,
    campaign   text not null,
    donor      text not null,
    amount     bigint not null check (amount > 0),
    deposit    bigint not null default 0 check (deposit >= 0),
    created_at timestamptz not null,
    unique (campaign, donor)
);
create table if not exists ledger_accounts (
    account    text primary key,
    balance    bigint not null default 0 check (balance >= 0),
    updated_at timestamptz not null default now()
);
create table if not exists ledger_transfers (
    seq          bigserial primary key,
    id           uuid not null unique,
    from_account text not null,
    to_account   text not null,
    amount       bigint not null check (amount > 0),
    kind         text not null,
    campaign     text not null default '',
    created_at   timestamptz not null
);
create index if not exists ledger_transfers_campaign_idx on ledger_transfers (campaign, seq);
`
